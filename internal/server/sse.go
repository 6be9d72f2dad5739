// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerStreamRoute() {
	s.router.Post("/ask/stream", s.handleAskStream)

	// Register the operation in the OpenAPI spec manually. The SSE
	// handler needs raw http.ResponseWriter access for flushing, so it
	// cannot use huma's standard handler signature; the chi route above
	// does the work and this entry documents it.
	minLen := 1
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "ask-stream",
		Method:      http.MethodPost,
		Path:        "/ask/stream",
		Summary:     "Ask a question and stream progress + tokens via SSE",
		Tags:        []string{"qa"},
		RequestBody: &huma.RequestBody{
			Required: true,
			Content: map[string]*huma.MediaType{
				"application/json": {
					Schema: &huma.Schema{
						Type:     "object",
						Required: []string{"text"},
						Properties: map[string]*huma.Schema{
							"text": {
								Type:        "string",
								MinLength:   &minLen,
								Description: "The question to ask",
							},
						},
					},
				},
			},
		},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Server-sent event stream",
				Content: map[string]*huma.MediaType{
					"text/event-stream": {
						Schema: &huma.Schema{Type: "string", Description: "SSE frames"},
					},
				},
			},
			"400": {Description: "Malformed request"},
		},
	})
}

type askStreamRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	var req askStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "malformed_request", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeErrorJSON(w, http.StatusBadRequest, "malformed_request", "question must not be empty")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		// A writer without Flusher still receives every event, only
		// without per-event flushing.
		flusher = nil
	}

	// r.Context() is cancelled when the client disconnects; the
	// orchestrator aborts in-flight upstream calls and tears the
	// session down.
	_, events := s.app.Orchestrator.Ask(r.Context(), strings.TrimSpace(req.Text))

	for ev := range events {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writeErrorJSON(w http.ResponseWriter, status int, category, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"category": category,
		"message":  message,
	})
}
