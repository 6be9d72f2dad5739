// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package index_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerebro-notes/cerebro/internal/index"
)

func TestLoadMissingManifestIsEmpty(t *testing.T) {
	m, err := index.LoadManifest(filepath.Join(t.TempDir(), index.ManifestFileName))
	require.NoError(t, err)
	assert.Empty(t, m.Entries)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), index.ManifestFileName)

	m, err := index.LoadManifest(path)
	require.NoError(t, err)

	m.Entries["a.md"] = index.Entry{
		Path:      "a.md",
		Hash:      "deadbeef",
		IndexedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		ChunkIDs:  []string{"c1", "c2"},
	}
	require.NoError(t, m.Save())

	loaded, err := index.LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m.Entries, loaded.Entries)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, index.ManifestFileName)

	m, err := index.LoadManifest(path)
	require.NoError(t, err)
	m.Entries["a.md"] = index.Entry{Path: "a.md", Hash: "h", ChunkIDs: []string{"c"}}
	require.NoError(t, m.Save())
	require.NoError(t, m.Save()) // overwrite is fine

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, index.ManifestFileName, entries[0].Name())
}

func TestLoadCorruptManifestErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), index.ManifestFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := index.LoadManifest(path)
	assert.Error(t, err)
}
