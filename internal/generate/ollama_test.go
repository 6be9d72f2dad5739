// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package generate_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerebro-notes/cerebro/internal/generate"
	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

// ndjsonHandler streams the given token fragments then a done chunk.
func ndjsonHandler(t *testing.T, tokens []string, sendDone bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		flusher := w.(http.Flusher)
		for _, tok := range tokens {
			fmt.Fprintf(w, `{"response":%q,"done":false}`+"\n", tok)
			flusher.Flush()
		}
		if sendDone {
			fmt.Fprintln(w, `{"response":"","done":true}`)
			flusher.Flush()
		}
	}
}

func collect(t *testing.T, fragments <-chan generate.Fragment) (string, error) {
	t.Helper()
	var b strings.Builder
	for frag := range fragments {
		if frag.Err != nil {
			return b.String(), frag.Err
		}
		b.WriteString(frag.Text)
	}
	return b.String(), nil
}

func TestStreamForwardsTokens(t *testing.T) {
	srv := httptest.NewServer(ndjsonHandler(t, []string{"Hel", "lo", " world"}, true))
	defer srv.Close()

	c := generate.NewClient(srv.URL, "gemma3")

	fragments, err := c.Stream(context.Background(), "prompt")
	require.NoError(t, err)

	text, err := collect(t, fragments)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
}

func TestStreamHostUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	c := generate.NewClient(srv.URL, "gemma3")

	_, err := c.Stream(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, cerebroerr.HasCode(err, cerebroerr.CodeGenerateUnavailable))
}

func TestStreamNon200IsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := generate.NewClient(srv.URL, "gemma3")

	_, err := c.Stream(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, cerebroerr.HasCode(err, cerebroerr.CodeGenerateUnavailable))
}

func TestStreamBrokenMidway(t *testing.T) {
	srv := httptest.NewServer(ndjsonHandler(t, []string{"partial"}, false))
	defer srv.Close()

	c := generate.NewClient(srv.URL, "gemma3")

	fragments, err := c.Stream(context.Background(), "prompt")
	require.NoError(t, err)

	text, err := collect(t, fragments)
	assert.Equal(t, "partial", text) // partial output is delivered, never retracted
	require.Error(t, err)
	assert.True(t, cerebroerr.HasCode(err, cerebroerr.CodeGenerateStreamBroken))
}

func TestStreamCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `{"response":"tok","done":false}`)
		flusher.Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	c := generate.NewClient(srv.URL, "gemma3")

	fragments, err := c.Stream(ctx, "prompt")
	require.NoError(t, err)

	frag := <-fragments
	assert.Equal(t, "tok", frag.Text)

	cancel()

	// The channel closes promptly after cancellation.
	select {
	case _, open := <-fragments:
		if open {
			// one in-flight fragment may slip out; the next read must close
			select {
			case _, open = <-fragments:
				assert.False(t, open)
			case <-time.After(time.Second):
				t.Fatal("fragment channel not closed after cancel")
			}
		}
	case <-time.After(time.Second):
		t.Fatal("fragment channel not closed after cancel")
	}
}

func TestModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{{"name": "gemma3"}, {"name": "qwen2.5"}},
		})
	}))
	defer srv.Close()

	c := generate.NewClient(srv.URL, "gemma3")

	models, err := c.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gemma3", "qwen2.5"}, models)
}

func TestModelsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := generate.NewClient(srv.URL, "gemma3")

	_, err := c.Models(context.Background())
	require.Error(t, err)
	assert.True(t, cerebroerr.HasCode(err, cerebroerr.CodeGenerateUnavailable))
}
