// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package tui

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

// StreamEvent is one parsed SSE frame from /ask/stream.
type StreamEvent struct {
	Name string
	Data json.RawMessage
}

// Client is a thin consumer of the server's SSE contract.
type Client struct {
	BaseURL string
	http    *http.Client
}

// NewClient creates a client for a running cerebro server.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimSuffix(baseURL, "/"), http: &http.Client{}}
}

// AskStream POSTs a question and delivers each SSE event to onEvent in
// arrival order. It returns when the stream ends or ctx is cancelled.
func (c *Client) AskStream(ctx context.Context, question string, onEvent func(StreamEvent)) error {
	body, err := json.Marshal(map[string]string{"text": question})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/ask/stream", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return cerebroerr.Wrap(err, cerebroerr.CodeGenerateUnavailable, "server unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return cerebroerr.Errorf(cerebroerr.CodeServerRequestInvalid, "server returned %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var ev StreamEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.Data = json.RawMessage(strings.TrimPrefix(line, "data: "))
		case line == "":
			if ev.Name != "" {
				onEvent(ev)
				ev = StreamEvent{}
			}
		}
	}
	return scanner.Err()
}

// Health fetches /health and reports the generator model name.
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", cerebroerr.Wrap(err, cerebroerr.CodeGenerateUnavailable, "server unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	var parsed struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.Model, nil
}

// FormatSources renders a sources payload for display.
func FormatSources(raw json.RawMessage) string {
	var parsed struct {
		Sources []struct {
			Source        string  `json:"source"`
			Score         float64 `json:"score"`
			RetrievalType string  `json:"retrieval_type"`
		} `json:"sources"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || len(parsed.Sources) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Sources:\n")
	for _, s := range parsed.Sources {
		fmt.Fprintf(&b, "  %.2f  %s (%s)\n", s.Score, s.Source, s.RetrievalType)
	}
	return b.String()
}
