// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package qa_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerebro-notes/cerebro/internal/embed"
	"github.com/cerebro-notes/cerebro/internal/generate"
	"github.com/cerebro-notes/cerebro/internal/index"
	"github.com/cerebro-notes/cerebro/internal/qa"
	"github.com/cerebro-notes/cerebro/internal/retrieve"
	"github.com/cerebro-notes/cerebro/internal/store"
	"github.com/cerebro-notes/cerebro/internal/store/memory"
	"github.com/cerebro-notes/cerebro/internal/vault"
	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

// stubGenerator yields a fixed token sequence, or fails.
type stubGenerator struct {
	tokens   []string
	startErr error
	midErr   error
	prompts  []string
}

func (s *stubGenerator) Stream(_ context.Context, prompt string) (<-chan generate.Fragment, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.prompts = append(s.prompts, prompt)

	out := make(chan generate.Fragment)
	go func() {
		defer close(out)
		for _, tok := range s.tokens {
			out <- generate.Fragment{Text: tok}
		}
		if s.midErr != nil {
			out <- generate.Fragment{Err: s.midErr}
			return
		}
		out <- generate.Fragment{Done: true}
	}()
	return out, nil
}

func (s *stubGenerator) Models(context.Context) ([]string, error) { return []string{"stub"}, nil }
func (s *stubGenerator) ModelName() string                        { return "stub" }

func orchestratorFixture(t *testing.T, notes map[string]string, useReranker bool, gen generate.Generator) *qa.Orchestrator {
	t.Helper()
	root := t.TempDir()
	for rel, content := range notes {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	v, err := vault.New(root, nil)
	require.NoError(t, err)

	embedder := embed.NewLocalEmbedder("")
	vectors := memory.NewVectorStore(embedder.Dimension())
	lexical, err := store.NewLexicalStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = lexical.Close() })

	manifest, err := index.LoadManifest(filepath.Join(root, vault.StateDirName+"-manifest.json"))
	require.NoError(t, err)

	indexer := index.New(v, vault.Chunker{Size: 400, Overlap: 80}, embedder, vectors, lexical, manifest)
	_, err = indexer.Index(context.Background(), false)
	require.NoError(t, err)

	hybrid := retrieve.NewHybrid(embedder, vectors, lexical, retrieve.HybridConfig{
		RetrievalK: 12, BM25K: 5, VectorWeight: 0.6, BM25Weight: 0.4,
	})
	reranker := retrieve.NewReranker(retrieve.OverlapScorer{}, 6)
	expander := retrieve.NewExpander(v, indexer.KnownPaths)

	return qa.New(hybrid, reranker, expander, gen, useReranker, 0.3)
}

func eventNames(events <-chan qa.Event) []string {
	var names []string
	for ev := range events {
		names = append(names, ev.Name)
	}
	return names
}

func TestStreamingEventOrder(t *testing.T) {
	gen := &stubGenerator{tokens: []string{"The ", "answer."}}
	o := orchestratorFixture(t, map[string]string{
		"a.md": "Hello [[b]] this note talks about tomatoes.",
		"b.md": "World of basil and tomatoes.",
	}, true, gen)

	_, events := o.Ask(context.Background(), "what about tomatoes?")

	names := eventNames(events)
	require.GreaterOrEqual(t, len(names), 9)
	assert.Equal(t, "start", names[0])
	assert.Equal(t, []string{"phase", "phase", "retrieval_info", "context_info", "phase"}, names[1:6])
	assert.Equal(t, "ttft", names[6])
	assert.Equal(t, "token", names[7])
	assert.Equal(t, "sources", names[len(names)-2])
	assert.Equal(t, "done", names[len(names)-1])
}

func TestStreamAndSyncAgree(t *testing.T) {
	notes := map[string]string{
		"a.md": "Tomatoes need sun. See [[b]].",
		"b.md": "Basil pairs with tomatoes.",
	}

	syncGen := &stubGenerator{tokens: []string{"Toma", "toes ", "need ", "sun."}}
	o := orchestratorFixture(t, notes, true, syncGen)

	answer, err := o.AskSync(context.Background(), "what do tomatoes need?")
	require.NoError(t, err)
	assert.Equal(t, "Tomatoes need sun.", answer.Result)
	require.NotEmpty(t, answer.SessionID)

	streamGen := &stubGenerator{tokens: []string{"Toma", "toes ", "need ", "sun."}}
	o2 := orchestratorFixture(t, notes, true, streamGen)

	_, events := o2.Ask(context.Background(), "what do tomatoes need?")
	var concat strings.Builder
	var streamed []qa.Source
	for ev := range events {
		switch data := ev.Data.(type) {
		case qa.TokenData:
			concat.WriteString(data.Content)
		case qa.SourcesData:
			streamed = data.Sources
		}
	}

	assert.Equal(t, answer.Result, concat.String())
	assert.Equal(t, answer.Sources, streamed)
}

func TestSourcesScoredAndTagged(t *testing.T) {
	gen := &stubGenerator{tokens: []string{"ok"}}
	o := orchestratorFixture(t, map[string]string{
		"a.md": "Hello [[b]] tomatoes in the garden.",
		"b.md": "World",
	}, true, gen)

	answer, err := o.AskSync(context.Background(), "What is b? tomatoes garden hello")
	require.NoError(t, err)
	require.NotEmpty(t, answer.Sources)

	var foundB bool
	for _, s := range answer.Sources {
		assert.GreaterOrEqual(t, s.Score, 0.0)
		assert.LessOrEqual(t, s.Score, 1.0)
		assert.Contains(t, []string{"retrieved", "linked"}, s.RetrievalType)
		if s.Source == "b.md" {
			foundB = true
		}
	}
	assert.True(t, foundB, "b.md should appear via retrieval or link expansion")
}

func TestEmptyVaultStillGenerates(t *testing.T) {
	gen := &stubGenerator{tokens: []string{"I could not find this in your notes"}}
	o := orchestratorFixture(t, nil, false, gen)

	answer, err := o.AskSync(context.Background(), "anything?")
	require.NoError(t, err)
	assert.Contains(t, answer.Result, "could not find")
	assert.Empty(t, answer.Sources)

	// The generator was still invoked, with empty context.
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "no notes matched")
}

func TestGeneratorUnavailable(t *testing.T) {
	gen := &stubGenerator{startErr: cerebroerr.New(cerebroerr.CodeGenerateUnavailable, "connection refused")}
	o := orchestratorFixture(t, map[string]string{"a.md": "note"}, false, gen)

	_, events := o.Ask(context.Background(), "anything")

	var names []string
	var lastErr qa.ErrorData
	for ev := range events {
		names = append(names, ev.Name)
		if data, ok := ev.Data.(qa.ErrorData); ok {
			lastErr = data
		}
	}

	assert.Equal(t, []string{"start", "phase", "retrieval_info", "context_info", "phase", "error"}, names)
	assert.Equal(t, "llm_unavailable", lastErr.Category)
}

func TestStreamBrokenAfterTokens(t *testing.T) {
	gen := &stubGenerator{
		tokens: []string{"partial "},
		midErr: cerebroerr.New(cerebroerr.CodeGenerateStreamBroken, "upstream died"),
	}
	o := orchestratorFixture(t, map[string]string{"a.md": "note"}, false, gen)

	_, events := o.Ask(context.Background(), "anything")

	var names []string
	for ev := range events {
		names = append(names, ev.Name)
	}

	assert.Contains(t, names, "token")
	assert.Equal(t, "error", names[len(names)-1])
	assert.NotContains(t, names, "sources")
	assert.NotContains(t, names, "done")
}

func TestCancellationStopsEvents(t *testing.T) {
	gen := &stubGenerator{tokens: []string{"a", "b", "c", "d"}}
	o := orchestratorFixture(t, map[string]string{"a.md": "note"}, false, gen)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, events := o.Ask(ctx, "anything")

	// Read up to the first token, then hang up.
	for ev := range events {
		if ev.Name == "token" {
			cancel()
			break
		}
	}

	// The channel must close promptly; draining terminates.
	for range events { //nolint:revive
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := qa.BuildPrompt("why?", []retrieve.Candidate{
		{Source: "a.md", Text: "alpha"},
		{Source: "b.md", Text: "beta"},
	})

	assert.Contains(t, prompt, "--- From: a.md ---\nalpha")
	assert.Contains(t, prompt, "--- From: b.md ---\nbeta")
	assert.Contains(t, prompt, "Question: why?")
	assert.Contains(t, prompt, "I could not find this in your notes")
}
