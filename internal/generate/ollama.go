// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

// Package generate talks to the local model host: model catalog and
// token-streaming generation.
package generate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

// Fragment is one streamed piece of the answer.
type Fragment struct {
	Text string
	Done bool
	// Err is terminal; no further fragments follow it. Its code separates
	// a host that never answered from a stream that broke mid-answer.
	Err error
}

// Generator streams completions and lists available models.
type Generator interface {
	// Stream starts a generation and returns a channel of fragments. The
	// channel is closed when the upstream stream ends, errors, or ctx is
	// cancelled. The producer never buffers the full answer.
	Stream(ctx context.Context, prompt string) (<-chan Fragment, error)
	// Models returns the model names the host advertises.
	Models(ctx context.Context) ([]string, error)
	ModelName() string
}

// Client is a Generator over an Ollama-compatible HTTP API.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
	// idleTimeout aborts a stream when no token arrives for this long.
	idleTimeout time.Duration
}

// NewClient creates a generation client. Generation has no total
// deadline, only an idle-between-tokens timeout; answers can be long.
func NewClient(baseURL, model string) *Client {
	return &Client{
		baseURL:     baseURL,
		model:       model,
		temperature: 0.1,
		httpClient:  &http.Client{},
		idleTimeout: 30 * time.Second,
	}
}

func (c *Client) ModelName() string { return c.model }

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Models lists the host's available models via GET /api/tags.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, cerebroerr.Wrap(err, cerebroerr.CodeGenerateUnavailable, "building tags request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, cerebroerr.Wrap(err, cerebroerr.CodeGenerateUnavailable, "model host unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, cerebroerr.Errorf(cerebroerr.CodeGenerateUnavailable, "tags endpoint returned %d", resp.StatusCode)
	}

	var parsed tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, cerebroerr.Wrap(err, cerebroerr.CodeGenerateUnavailable, "decoding tags response")
	}

	names := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Stream POSTs /api/generate and forwards NDJSON token fragments as they
// arrive. A connection refusal or non-2xx before the first byte is
// llm_unavailable; a stream that dies after starting is
// generation_stream_broken. Cancelling ctx aborts the upstream call.
func (c *Client) Stream(ctx context.Context, prompt string) (<-chan Fragment, error) {
	body, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  true,
		Options: generateOptions{Temperature: c.temperature},
	})
	if err != nil {
		return nil, cerebroerr.Wrap(err, cerebroerr.CodeGenerateUnavailable, "encoding generate request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, cerebroerr.Wrap(err, cerebroerr.CodeGenerateUnavailable, "building generate request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, cerebroerr.Wrap(err, cerebroerr.CodeGenerateUnavailable,
			"model host unreachable", cerebroerr.FieldModel(c.model))
	}

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, cerebroerr.Errorf(cerebroerr.CodeGenerateUnavailable,
			"generate endpoint returned %d: %s", resp.StatusCode, payload)
	}

	// Unbuffered: emission blocks until the consumer reads, so a stalled
	// client eventually stops us reading from the upstream body.
	out := make(chan Fragment)
	go c.pump(ctx, resp.Body, out)
	return out, nil
}

func (c *Client) pump(ctx context.Context, body io.ReadCloser, out chan<- Fragment) {
	defer close(out)
	defer func() { _ = body.Close() }()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	idle := time.NewTimer(c.idleTimeout)
	defer idle.Stop()

	sawDone := false
	for {
		select {
		case <-ctx.Done():
			return

		case <-idle.C:
			c.emit(ctx, out, Fragment{Err: cerebroerr.New(cerebroerr.CodeGenerateStreamBroken,
				"no token received within idle timeout", cerebroerr.FieldModel(c.model))})
			return

		case line, ok := <-lines:
			if !ok {
				if sawDone || ctx.Err() != nil {
					return
				}
				// The scan goroutine writes scanErr before closing lines
				// unless it bailed on cancellation, handled above.
				var err error
				select {
				case err = <-scanErr:
				default:
				}
				if err == nil {
					err = io.ErrUnexpectedEOF
				}
				c.emit(ctx, out, Fragment{Err: cerebroerr.Wrap(err, cerebroerr.CodeGenerateStreamBroken,
					"generation stream ended unexpectedly", cerebroerr.FieldModel(c.model))})
				return
			}

			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			var chunk generateChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				c.emit(ctx, out, Fragment{Err: cerebroerr.Wrap(err, cerebroerr.CodeGenerateStreamBroken,
					"malformed stream chunk", cerebroerr.FieldModel(c.model))})
				return
			}

			if chunk.Response != "" {
				if !c.emit(ctx, out, Fragment{Text: chunk.Response}) {
					return
				}
			}
			if chunk.Done {
				sawDone = true
				c.emit(ctx, out, Fragment{Done: true})
				return
			}

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(c.idleTimeout)
		}
	}
}

func (c *Client) emit(ctx context.Context, out chan<- Fragment, f Fragment) bool {
	select {
	case out <- f:
		return true
	case <-ctx.Done():
		return false
	}
}
