// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package qa

import (
	"context"
	"log/slog"
	"math"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cerebro-notes/cerebro/internal/generate"
	"github.com/cerebro-notes/cerebro/internal/retrieve"
	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

// Orchestrator is the two-stage state machine behind /ask and
// /ask/stream: retrieve (hybrid → rerank → graph expansion), then
// generate (token streaming from the model host).
type Orchestrator struct {
	retriever *retrieve.Hybrid
	reranker  *retrieve.Reranker
	expander  *retrieve.Expander
	generator generate.Generator

	useReranker bool
	minScore    float64
	logger      *slog.Logger
}

// New wires an orchestrator.
func New(retriever *retrieve.Hybrid, reranker *retrieve.Reranker, expander *retrieve.Expander, generator generate.Generator, useReranker bool, minScore float64) *Orchestrator {
	return &Orchestrator{
		retriever:   retriever,
		reranker:    reranker,
		expander:    expander,
		generator:   generator,
		useReranker: useReranker,
		minScore:    minScore,
		logger:      slog.Default(),
	}
}

// Ask starts a question session and returns its session ID plus the
// event sequence. The channel is unbuffered: emission blocks until the
// consumer reads, so a stalled client exerts backpressure all the way to
// the upstream generator. The channel is closed after the terminal event
// (done or error) or when ctx is cancelled.
func (o *Orchestrator) Ask(ctx context.Context, question string) (string, <-chan Event) {
	sessionID := uuid.NewString()
	events := make(chan Event)

	go o.run(ctx, sessionID, question, time.Now(), events)
	return sessionID, events
}

// AskSync runs the same event pipeline and aggregates it into an Answer,
// so the synchronous and streaming paths cannot diverge.
func (o *Orchestrator) AskSync(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()
	sessionID, events := o.Ask(ctx, question)

	var (
		result  strings.Builder
		sources []Source
	)
	for ev := range events {
		switch data := ev.Data.(type) {
		case TokenData:
			result.WriteString(data.Content)
		case SourcesData:
			sources = data.Sources
		case ErrorData:
			code := cerebroerr.CodeServerInternalFailure
			switch data.Category {
			case "llm_unavailable":
				code = cerebroerr.CodeGenerateUnavailable
			case "embedder_unavailable":
				code = cerebroerr.CodeEmbedUnavailable
			case "generation_stream_broken":
				code = cerebroerr.CodeGenerateStreamBroken
			}
			return nil, cerebroerr.New(code, data.Message, cerebroerr.FieldSessionID(sessionID))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, cerebroerr.Wrap(err, cerebroerr.CodeClientCancelled, "question cancelled")
	}

	return &Answer{
		Question:    question,
		Result:      result.String(),
		Sources:     sources,
		ProcessTime: time.Since(start).Seconds(),
		SessionID:   sessionID,
	}, nil
}

func (o *Orchestrator) run(ctx context.Context, sessionID, question string, started time.Time, events chan<- Event) {
	defer close(events)

	emit := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	fail := func(err error) {
		o.logger.Warn("question failed",
			"session_id", sessionID, "category", cerebroerr.Category(err), "error", err)
		emit(Event{Name: "error", Data: ErrorData{
			Message:  err.Error(),
			Category: cerebroerr.Category(err),
		}})
	}

	if !emit(Event{Name: "start", Data: StartData{SessionID: sessionID}}) {
		return
	}

	// Retrieving.
	if !emit(Event{Name: "phase", Data: PhaseData{Phase: "retrieve", Message: "searching notes"}}) {
		return
	}

	cands, err := o.retriever.Retrieve(ctx, question)
	if err != nil {
		fail(err)
		return
	}
	totalFound := len(cands)

	if o.useReranker && len(cands) > 0 {
		if !emit(Event{Name: "phase", Data: PhaseData{Phase: "rerank", Message: "reranking results"}}) {
			return
		}
		cands, err = o.reranker.Rerank(ctx, question, cands)
		if err != nil {
			fail(err)
			return
		}
	}

	if len(cands) > 0 {
		cands = retrieve.ApplyThreshold(cands, o.minScore)
	}
	afterFilter := len(cands)

	if !emit(Event{Name: "retrieval_info", Data: RetrievalInfoData{
		TotalFound:  totalFound,
		AfterFilter: afterFilter,
	}}) {
		return
	}

	cands = o.expander.Expand(ctx, cands)

	var totalChars int
	for _, c := range cands {
		totalChars += len(c.Text)
	}
	if !emit(Event{Name: "context_info", Data: ContextInfoData{
		NumDocs:    len(cands),
		TotalChars: totalChars,
	}}) {
		return
	}

	// Generating.
	if !emit(Event{Name: "phase", Data: PhaseData{Phase: "generate", Message: "generating answer"}}) {
		return
	}

	fragments, err := o.generator.Stream(ctx, BuildPrompt(question, cands))
	if err != nil {
		fail(err)
		return
	}

	first := true
	for frag := range fragments {
		if frag.Err != nil {
			fail(frag.Err)
			return
		}
		if frag.Done {
			break
		}
		if first {
			first = false
			if !emit(Event{Name: "ttft", Data: TTFTData{Seconds: time.Since(started).Seconds()}}) {
				return
			}
		}
		if !emit(Event{Name: "token", Data: TokenData{Content: frag.Text}}) {
			return
		}
	}

	if ctx.Err() != nil {
		return
	}

	if !emit(Event{Name: "sources", Data: SourcesData{Sources: scoredSources(cands)}}) {
		return
	}
	emit(Event{Name: "done", Data: struct{}{}})
}

// scoredSources collapses the final context into per-source records,
// keeping each source's best score, ordered by score descending then
// path ascending.
func scoredSources(cands []retrieve.Candidate) []Source {
	best := make(map[string]Source, len(cands))
	for _, c := range cands {
		score := clamp01(c.Score)
		if cur, ok := best[c.Source]; !ok || score > cur.Score {
			best[c.Source] = Source{
				Source:        c.Source,
				Name:          displayName(c.Source),
				Score:         score,
				RetrievalType: c.RetrievalType(),
			}
		}
	}

	out := make([]Source, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Source < out[j].Source
	})
	return out
}

func displayName(source string) string {
	return strings.TrimSuffix(path.Base(source), path.Ext(source))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
