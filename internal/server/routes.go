// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package server

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/cerebro-notes/cerebro/internal/qa"
	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Model          string `json:"model"`
	EmbeddingModel string `json:"embedding_model"`
	DBReady        bool   `json:"db_ready"`
}

type HealthResponse struct {
	Body HealthBody
}

// StatsBody summarises the indexed vault.
type StatsBody struct {
	TotalNotes       int    `json:"total_notes"`
	TotalChunks      int    `json:"total_chunks"`
	TotalWords       int    `json:"total_words"`
	TotalChars       int    `json:"total_chars"`
	AvgWordsPerChunk int    `json:"avg_words_per_chunk"`
	Folders          int    `json:"folders"`
	InternalLinks    int    `json:"internal_links"`
	VaultPath        string `json:"vault_path"`
}

type StatsResponse struct {
	Body StatsBody
}

// AskInput is the request body shared by /ask and /ask/stream.
type AskInput struct {
	Body struct {
		Text string `json:"text" doc:"The question to ask"`
	}
}

type AskResponse struct {
	Body qa.Answer
}

// RebuildBody reports the outcome of a forced reindex.
type RebuildBody struct {
	Status      string `json:"status"`
	TotalChunks int    `json:"total_chunks"`
}

type RebuildResponse struct {
	Body RebuildBody
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, s.handleHealth)

	huma.Register(s.api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Vault statistics",
		Tags:        []string{"system"},
	}, s.handleStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "ask",
		Method:      http.MethodPost,
		Path:        "/ask",
		Summary:     "Ask a question and wait for the full answer",
		Tags:        []string{"qa"},
	}, s.handleAsk)

	huma.Register(s.api, huma.Operation{
		OperationID: "rebuild-db",
		Method:      http.MethodPost,
		Path:        "/rebuild_db",
		Summary:     "Force a full reindex of the vault",
		Tags:        []string{"system"},
	}, s.handleRebuild)
}

func (s *Server) handleHealth(ctx context.Context, _ *struct{}) (*HealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	ready, err := s.app.Vectors.Count(ctx)
	return &HealthResponse{Body: HealthBody{
		Status:         "ok",
		Version:        s.app.Version,
		Model:          s.app.Generator.ModelName(),
		EmbeddingModel: s.app.Embedder.ModelName(),
		DBReady:        err == nil && ready > 0,
	}}, nil
}

func (s *Server) handleStats(ctx context.Context, _ *struct{}) (*StatsResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	records, err := s.app.Vectors.All(ctx)
	if err != nil {
		return nil, humaError(err)
	}

	var (
		totalWords, totalChars int
		notes                  = make(map[string]struct{})
		folders                = make(map[string]struct{})
		links                  = make(map[string]struct{})
	)
	for _, rec := range records {
		totalChars += len(rec.Text)
		totalWords += len(strings.Fields(rec.Text))
		notes[rec.Source] = struct{}{}
		if dir := filepath.Dir(rec.Source); dir != "." {
			folders[dir] = struct{}{}
		}
		for _, l := range rec.Links {
			links[l] = struct{}{}
		}
	}

	avg := 0
	if len(records) > 0 {
		avg = totalWords / len(records)
	}

	return &StatsResponse{Body: StatsBody{
		TotalNotes:       len(notes),
		TotalChunks:      len(records),
		TotalWords:       totalWords,
		TotalChars:       totalChars,
		AvgWordsPerChunk: avg,
		Folders:          len(folders),
		InternalLinks:    len(links),
		VaultPath:        filepath.Base(s.app.Config.VaultPath),
	}}, nil
}

func (s *Server) handleAsk(ctx context.Context, input *AskInput) (*AskResponse, error) {
	question := strings.TrimSpace(input.Body.Text)
	if question == "" {
		return nil, huma.Error400BadRequest("question must not be empty")
	}

	answer, err := s.app.Orchestrator.AskSync(ctx, question)
	if err != nil {
		return nil, humaError(err)
	}
	return &AskResponse{Body: *answer}, nil
}

func (s *Server) handleRebuild(ctx context.Context, _ *struct{}) (*RebuildResponse, error) {
	if _, err := s.app.Indexer.Index(ctx, true); err != nil {
		return nil, humaError(err)
	}
	if err := s.app.Indexer.RebuildLexical(ctx); err != nil {
		return nil, humaError(err)
	}

	total, err := s.app.Vectors.Count(ctx)
	if err != nil {
		return nil, humaError(err)
	}
	return &RebuildResponse{Body: RebuildBody{Status: "success", TotalChunks: total}}, nil
}

// humaError maps a coded error to a huma status error carrying the wire
// category in its message.
func humaError(err error) error {
	return huma.NewError(cerebroerr.HTTPStatus(err), cerebroerr.Category(err)+": "+err.Error())
}
