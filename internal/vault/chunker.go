// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
)

// Chunk is the unit of indexing, retrieval, and generation context. Chunks
// are immutable: when a source file changes, its chunks are replaced
// wholesale.
type Chunk struct {
	// ID is deterministic over (source, ordinal, text), so re-chunking
	// identical content produces identical IDs across runs.
	ID      string
	Source  string // path relative to the vault root
	Ordinal int    // 0-based, dense within a source
	Text    string
	Links   []string // outbound wiki-link targets, deduplicated, order preserved
}

// Chunker splits Markdown documents into overlapping windows.
type Chunker struct {
	Size    int
	Overlap int
}

var wikiLinkRe = regexp.MustCompile(`\[\[([^\]]+)\]\]`)

// Split chunks the given file content. Empty and whitespace-only content
// produces zero chunks; content smaller than one window produces a single
// chunk covering the whole file.
func (c Chunker) Split(source string, content []byte) []Chunk {
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []Chunk
	for ordinal, window := range splitWindows([]rune(text), c.Size, c.Overlap) {
		chunkText := string(window)
		chunks = append(chunks, Chunk{
			ID:      ChunkID(source, ordinal, chunkText),
			Source:  source,
			Ordinal: ordinal,
			Text:    chunkText,
			Links:   ExtractLinks(chunkText),
		})
	}
	return chunks
}

// ChunkID returns the stable identifier for a chunk: the hex SHA-256 of
// the source path, ordinal, and chunk text joined with NUL separators.
func ChunkID(source string, ordinal int, text string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(ordinal)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// ExtractLinks returns the wiki-link targets in content. Aliases are
// stripped ([[Note|Alias]] -> Note); folder qualifiers and case are
// preserved; duplicates are removed keeping first occurrence.
func ExtractLinks(content string) []string {
	matches := wikiLinkRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var links []string
	for _, m := range matches {
		target := strings.TrimSpace(m[1])
		if idx := strings.Index(target, "|"); idx >= 0 {
			target = strings.TrimSpace(target[:idx])
		}
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		links = append(links, target)
	}
	return links
}

// splitWindows cuts runes into overlapping windows of at most size runes.
// Window ends prefer structural boundaries: paragraph break, then line
// break, then sentence end, then whitespace, before forcing a mid-word cut.
func splitWindows(runes []rune, size, overlap int) [][]rune {
	if size <= 0 {
		size = 1500
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	if len(runes) <= size {
		return [][]rune{runes}
	}

	var windows [][]rune
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			windows = append(windows, runes[start:])
			break
		}

		cut := boundaryBefore(runes, start, end)
		windows = append(windows, runes[start:cut])

		next := cut - overlap
		if next <= start {
			next = cut // overlap would stall progress on a short window
		}
		start = next
	}
	return windows
}

// boundaryBefore finds the best cut point in (start, end], scanning
// backwards through each separator class in turn. A boundary is only taken
// in the trailing half of the window so chunks stay near the target size.
func boundaryBefore(runes []rune, start, end int) int {
	floor := start + (end-start)/2
	text := string(runes[floor:end])

	for _, sep := range []string{"\n\n", "\n", ". ", " "} {
		if idx := strings.LastIndex(text, sep); idx >= 0 {
			return floor + len([]rune(text[:idx])) + len([]rune(sep))
		}
	}
	return end
}
