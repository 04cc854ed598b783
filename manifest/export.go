package manifest

import (
	"path/filepath"
	"strings"

	"github.com/merlin-labs/merlin/core"
)

// Export writes a shareable copy of the manifest to path: local absolute
// paths are stripped so the file carries no machine-specific state.
func Export(m *core.Manifest, path, aimlHome string) error {
	return Save(Sanitize(m, aimlHome), path)
}

// Sanitize returns a copy of the manifest with local absolute paths removed:
// absolute folder names collapse to their base name and occurrences of the
// AIML root inside commands are replaced with the install-dir placeholder.
func Sanitize(m *core.Manifest, aimlHome string) *core.Manifest {
	out := m.Clone()
	for i := range out.Tools {
		t := &out.Tools[i]
		if filepath.IsAbs(t.FolderName) {
			t.FolderName = filepath.Base(t.FolderName)
		}
		for j, cmd := range t.InstallCommands {
			t.InstallCommands[j] = stripRoot(cmd, aimlHome)
		}
		t.StartCommand = stripRoot(t.StartCommand, aimlHome)
	}
	return out
}

func stripRoot(s, aimlHome string) string {
	if aimlHome == "" {
		return s
	}
	return strings.ReplaceAll(s, aimlHome, "{{install_root}}")
}

// Import loads a manifest from path and re-resolves it against the local
// AIML root, then merges it into the named manifest in the store under the
// given collision policy. It returns the merged manifest and the collisions
// encountered.
func (s *Store) Import(path, name, aimlHome string, policy Policy) (*core.Manifest, []Collision, error) {
	incoming, err := Load(path)
	if err != nil {
		return nil, nil, err
	}
	rehome(incoming, aimlHome)

	base, err := s.Load(name)
	if err != nil {
		// A missing base manifest means the import creates it.
		base = &core.Manifest{}
	}

	merged, collisions, err := Merge(base, incoming, policy)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Save(name, merged); err != nil {
		return nil, nil, err
	}
	return merged, collisions, nil
}

// rehome resolves exported placeholders and foreign absolute paths against
// the local AIML root.
func rehome(m *core.Manifest, aimlHome string) {
	for i := range m.Tools {
		t := &m.Tools[i]
		if filepath.IsAbs(t.FolderName) {
			t.FolderName = filepath.Base(t.FolderName)
		}
		for j, cmd := range t.InstallCommands {
			t.InstallCommands[j] = strings.ReplaceAll(cmd, "{{install_root}}", aimlHome)
		}
		t.StartCommand = strings.ReplaceAll(t.StartCommand, "{{install_root}}", aimlHome)
	}
}
