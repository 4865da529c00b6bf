// Package userconfig reads and updates the persisted user settings file that
// the backend also consumes. Only the keys the launcher owns are ever written;
// every other field in the document is preserved as is.
package userconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"deskshell/internal/environment"
	"deskshell/pkg/logging"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Keys are the settings the launcher copies from its own environment into the file.
var Keys = environment.AllowList{"LLM", "LLM_PROVIDER", "OPENAI_API_KEY", "GOOGLE_API_KEY", "API_KEY_*"}

// Store is a JSON settings document on disk.
type Store struct {
	Path string
}

// New returns a store for path.
func New(path string) *Store {
	return &Store{Path: path}
}

// Load returns the top-level scalar fields of the document. A missing or empty
// file yields an empty set.
func (s *Store) Load() (environment.Set, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return environment.Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user config %s: %w", s.Path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return environment.Set{}, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("user config %s is not valid JSON", s.Path)
	}

	out := environment.Set{}
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.String, gjson.Number, gjson.True, gjson.False:
			out[key.String()] = value.String()
		}
		return true
	})
	return out, nil
}

// Merge writes the non-empty values whose keys are in Keys. Other fields of
// the document are left untouched. Nothing is written when no value qualifies.
func (s *Store) Merge(values environment.Set) error {
	keys := make([]string, 0, len(values))
	for k, v := range Keys.Filter(values) {
		if v != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	doc, err := os.ReadFile(s.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read user config %s: %w", s.Path, err)
	}
	if len(strings.TrimSpace(string(doc))) == 0 {
		doc = []byte("{}")
	}
	if !gjson.ValidBytes(doc) {
		return fmt.Errorf("user config %s is not valid JSON", s.Path)
	}

	for _, k := range keys {
		doc, err = sjson.SetBytes(doc, escapePath(k), values[k])
		if err != nil {
			return fmt.Errorf("failed to set %s: %w", k, err)
		}
	}

	if err := writeFileAtomic(s.Path, doc); err != nil {
		return err
	}
	logging.Debug("UserConfig", "Updated %s with %d key(s)", s.Path, len(keys))
	return nil
}

// escapePath quotes the characters gjson and sjson treat as path syntax.
func escapePath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".userconfig-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write user config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict user config permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write user config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
