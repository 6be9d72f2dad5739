// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

// Package index reconciles the vault with the stores.
package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

// ManifestFileName is the manifest's file name inside the vault state dir.
const ManifestFileName = "manifest.json"

// Entry records one source file's indexed state.
type Entry struct {
	Path      string    `json:"path"` // vault-relative
	Hash      string    `json:"hash"` // hex SHA-256 of the file bytes
	IndexedAt time.Time `json:"indexed_at"`
	ChunkIDs  []string  `json:"chunk_ids"` // ordered by chunk ordinal
}

// Manifest is the authoritative record of which source files have been
// indexed, at which content hash, into which chunk IDs. It is owned by the
// Indexer; all writes go through the indexer mutex.
type Manifest struct {
	path    string
	Entries map[string]Entry `json:"entries"`
}

// LoadManifest reads the manifest at path. A missing file yields an empty
// manifest, which forces a full index pass.
func LoadManifest(path string) (*Manifest, error) {
	m := &Manifest{path: path, Entries: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, cerebroerr.Wrap(err, cerebroerr.CodeManifestIOFailure, "reading manifest", cerebroerr.FieldPath(path))
	}

	if err := json.Unmarshal(data, m); err != nil {
		return nil, cerebroerr.Wrap(err, cerebroerr.CodeManifestIOFailure, "parsing manifest", cerebroerr.FieldPath(path))
	}
	if m.Entries == nil {
		m.Entries = make(map[string]Entry)
	}
	return m, nil
}

// Save writes the manifest atomically: marshal to a temp file in the same
// directory, fsync, then rename over the target, so the on-disk manifest
// is never torn.
func (m *Manifest) Save() error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return cerebroerr.Wrap(err, cerebroerr.CodeManifestIOFailure, "marshalling manifest")
	}

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, ManifestFileName+".tmp-*")
	if err != nil {
		return cerebroerr.Wrap(err, cerebroerr.CodeManifestIOFailure, "creating temp manifest", cerebroerr.FieldPath(dir))
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return cerebroerr.Wrap(err, cerebroerr.CodeManifestIOFailure, "writing temp manifest", cerebroerr.FieldPath(tmpName))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return cerebroerr.Wrap(err, cerebroerr.CodeManifestIOFailure, "syncing temp manifest", cerebroerr.FieldPath(tmpName))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return cerebroerr.Wrap(err, cerebroerr.CodeManifestIOFailure, "closing temp manifest", cerebroerr.FieldPath(tmpName))
	}

	if err := os.Rename(tmpName, m.path); err != nil {
		_ = os.Remove(tmpName)
		return cerebroerr.Wrap(err, cerebroerr.CodeManifestIOFailure, "replacing manifest", cerebroerr.FieldPath(m.path))
	}
	return nil
}

// Path returns the manifest's on-disk location.
func (m *Manifest) Path() string { return m.path }
