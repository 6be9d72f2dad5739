// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package retrieve_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerebro-notes/cerebro/internal/retrieve"
	"github.com/cerebro-notes/cerebro/internal/vault"
)

func expanderFixture(t *testing.T, notes map[string]string) (*retrieve.Expander, []string) {
	t.Helper()
	root := t.TempDir()

	var known []string
	for rel, content := range notes {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		known = append(known, rel)
	}

	v, err := vault.New(root, nil)
	require.NoError(t, err)

	return retrieve.NewExpander(v, func() []string { return known }), known
}

func TestExpandAppendsLinkedDocument(t *testing.T) {
	e, _ := expanderFixture(t, map[string]string{
		"a.md": "Alpha links to [[b]].",
		"b.md": "Beta content here.",
	})

	cands := []retrieve.Candidate{
		{ID: "c1", Source: "a.md", Text: "Alpha links to [[b]].", Links: []string{"b"}, Score: 0.8},
	}

	out := e.Expand(context.Background(), cands)
	require.Len(t, out, 2)

	linked := out[1]
	assert.Equal(t, "b.md", linked.Source)
	assert.Equal(t, "Beta content here.", linked.Text)
	assert.Equal(t, retrieve.ProvenanceLinked, linked.Provenance)
	assert.Equal(t, retrieve.LinkedScore, linked.Score)
}

func TestExpandBrokenLinksDroppedSilently(t *testing.T) {
	e, _ := expanderFixture(t, map[string]string{
		"a.md": "Alpha links to [[ghost]].",
	})

	cands := []retrieve.Candidate{
		{ID: "c1", Source: "a.md", Text: "Alpha links to [[ghost]].", Links: []string{"ghost"}, Score: 0.8},
	}

	out := e.Expand(context.Background(), cands)
	assert.Equal(t, cands, out)
}

func TestExpandSkipsAlreadyPresentSources(t *testing.T) {
	e, _ := expanderFixture(t, map[string]string{
		"a.md": "Alpha links to [[b]].",
		"b.md": "Beta content.",
	})

	cands := []retrieve.Candidate{
		{ID: "c1", Source: "a.md", Text: "Alpha", Links: []string{"b"}, Score: 0.8},
		{ID: "c2", Source: "b.md", Text: "Beta content.", Score: 0.5},
	}

	out := e.Expand(context.Background(), cands)
	assert.Len(t, out, 2)
}

func TestExpandFolderQualifiedLink(t *testing.T) {
	e, _ := expanderFixture(t, map[string]string{
		"a.md":              "See [[Projects/Alpha]].",
		"Projects/Alpha.md": "Project alpha notes.",
	})

	cands := []retrieve.Candidate{
		{ID: "c1", Source: "a.md", Text: "See [[Projects/Alpha]].", Links: []string{"Projects/Alpha"}, Score: 0.7},
	}

	out := e.Expand(context.Background(), cands)
	require.Len(t, out, 2)
	assert.Equal(t, "Projects/Alpha.md", out[1].Source)
}

func TestExpandDedupsRepeatedTargets(t *testing.T) {
	e, _ := expanderFixture(t, map[string]string{
		"a.md": "[[c]]",
		"b.md": "[[c]]",
		"c.md": "Shared target.",
	})

	cands := []retrieve.Candidate{
		{ID: "c1", Source: "a.md", Text: "[[c]]", Links: []string{"c"}, Score: 0.8},
		{ID: "c2", Source: "b.md", Text: "[[c]]", Links: []string{"c"}, Score: 0.6},
	}

	out := e.Expand(context.Background(), cands)
	assert.Len(t, out, 3)
}

func TestExpandEmptyInput(t *testing.T) {
	e, _ := expanderFixture(t, nil)
	assert.Empty(t, e.Expand(context.Background(), nil))
}
