// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

// Package vault discovers and chunks the Markdown notes under a single
// root directory.
package vault

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

// StateDirName is the directory inside the vault that holds all persisted
// state (vector db, manifest). It is always excluded from walks.
const StateDirName = ".obsidianrag"

// Vault provides access to the notes below a root directory.
type Vault struct {
	Root         string
	ExcludeGlobs []string
}

// New validates the root and returns a Vault.
func New(root string, excludeGlobs []string) (*Vault, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, cerebroerr.Errorf(cerebroerr.CodeVaultMissing,
			"vault path %q does not exist or is not a directory", root)
	}
	return &Vault{Root: root, ExcludeGlobs: excludeGlobs}, nil
}

// Walk returns the relative paths of all Markdown files in the vault,
// skipping the state directory and any path matching an exclusion glob.
// Discovery order is the filesystem's; callers must not rely on it.
func (v *Vault) Walk() ([]string, error) {
	var paths []string

	err := filepath.WalkDir(v.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(v.Root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if d.Name() == StateDirName || strings.HasPrefix(d.Name(), ".") && rel != "." {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		if v.excluded(rel) {
			return nil
		}

		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, cerebroerr.Wrap(err, cerebroerr.CodeVaultWalkFailure, "walking vault", cerebroerr.FieldPath(v.Root))
	}

	return paths, nil
}

// Read returns the bytes of a note by vault-relative path.
func (v *Vault) Read(rel string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(v.Root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, cerebroerr.Wrap(err, cerebroerr.CodeVaultFileReadFailed, "reading note", cerebroerr.FieldPath(rel))
	}
	return data, nil
}

// Resolve maps a wiki-link target to the vault-relative path of the note
// it names. Exact relative-path match wins (with ".md" appended when the
// target does not already end in ".md"); otherwise the first
// case-insensitive basename match in known is used. Returns "" when the target resolves to
// nothing.
func (v *Vault) Resolve(target string, known []string) string {
	want := filepath.ToSlash(target)
	if !strings.HasSuffix(strings.ToLower(want), ".md") {
		want += ".md"
	}

	for _, rel := range known {
		if rel == want {
			return rel
		}
	}

	base := strings.ToLower(filepath.Base(want))
	for _, rel := range known {
		if strings.ToLower(filepath.Base(rel)) == base {
			return rel
		}
	}
	return ""
}

func (v *Vault) excluded(rel string) bool {
	lower := strings.ToLower(rel)
	for _, glob := range v.ExcludeGlobs {
		if ok, err := doublestar.Match(strings.ToLower(glob), lower); err == nil && ok {
			return true
		}
	}
	return false
}

// StateDir returns the absolute path of the vault's state directory,
// creating it if needed.
func (v *Vault) StateDir() (string, error) {
	dir := filepath.Join(v.Root, StateDirName)
	if err := os.MkdirAll(filepath.Join(dir, "db"), 0o755); err != nil {
		return "", cerebroerr.Wrap(err, cerebroerr.CodeVaultWalkFailure, "creating state directory", cerebroerr.FieldPath(dir))
	}
	return dir, nil
}
