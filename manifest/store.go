// Package manifest implements Merlin's manifest store: JSON load/save with
// atomic writes, merge policies, sanitized export/import, and the SQLite
// installation-record index.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/merlin-labs/merlin/core"
)

const manifestExt = ".json"

// DefaultName is the manifest used when the caller names none.
const DefaultName = "default"

// Store manages the manifests directory under the AIML root. It owns the
// descriptors and installation records it hands out for its lifetime.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a manifest store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the backing directory.
func (s *Store) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Load reads and validates a manifest file. Malformed JSON yields a PARSE
// error; a structurally valid file missing required fields yields SCHEMA.
func Load(path string) (*core.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %q: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes and validates manifest bytes. name is used in diagnostics.
func Parse(data []byte, name string) (*core.Manifest, error) {
	var m core.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, core.NewError(core.CodeParse, fmt.Sprintf("malformed manifest %q", name), err)
	}
	if err := Validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks manifest invariants: every tool has a name and names are
// unique within the manifest.
func Validate(m *core.Manifest) error {
	seen := make(map[string]struct{}, len(m.Tools))
	for i, t := range m.Tools {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return core.Errorf(core.CodeSchema, "tools[%d]: missing required field %q", i, "name")
		}
		if _, dup := seen[name]; dup {
			return core.Errorf(core.CodeSchema, "duplicate tool name %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Save writes the manifest atomically: a temp file in the target directory is
// renamed over the destination, so readers never observe a truncated file.
func Save(m *core.Manifest, path string) error {
	if err := Validate(m); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("manifest: create dir for %q: %w", path, err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: encode %q: %w", path, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".merlin-manifest-*")
	if err != nil {
		return fmt.Errorf("manifest: create temp for %q: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("manifest: write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("manifest: close %q: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("manifest: replace %q: %w", path, err)
	}
	return nil
}

// Path returns the file path for a named manifest in the store.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+manifestExt)
}

// Load reads a named manifest from the store.
func (s *Store) Load(name string) (*core.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Load(s.Path(name))
}

// Save writes a named manifest into the store, stamping last_updated.
func (s *Store) Save(name string, m *core.Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Metadata.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return Save(m, s.Path(name))
}

// Summary describes one stored manifest for listings.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ToolCount   int    `json:"tool_count"`
	LastUpdated string `json:"last_updated,omitempty"`
}

// List returns summaries for all manifests in the store, name-sorted.
// Unreadable files are skipped rather than failing the whole listing.
func (s *Store) List() ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("manifest: list %q: %w", s.dir, err)
	}

	var out []Summary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), manifestExt) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), manifestExt)
		m, err := Load(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		out = append(out, Summary{
			Name:        name,
			Description: m.Metadata.Description,
			ToolCount:   len(m.Tools),
			LastUpdated: m.Metadata.LastUpdated,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
