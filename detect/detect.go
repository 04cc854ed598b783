// Package detect reports which AI/ML tools are already present under the
// projects root. The scan is read-only and bounded; it never runs commands
// and never mutates the tree, so it is safe to call at any time.
package detect

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/merlin-labs/merlin/core"
)

// State classifies one tool's presence under the scan root.
type State string

const (
	// StateAbsent means no directory matched the tool's signature.
	StateAbsent State = "absent"
	// StatePresentUnconfigured means the directory exists but carries no
	// virtual environment yet.
	StatePresentUnconfigured State = "present-unconfigured"
	// StatePresentConfigured means the directory exists and holds a virtual
	// environment.
	StatePresentConfigured State = "present-configured"
)

// Signature describes how one tool shows up on disk: candidate directory
// names plus characteristic files and subdirectories inside the match.
type Signature struct {
	Tool    string
	Dirs    []string // lowercase directory name candidates
	Files   []string // any one confirms the match
	SubDirs []string // any one confirms the match
}

// Result is one tool's detection outcome.
type Result struct {
	Tool  string `json:"tool"`
	State State  `json:"state"`
	Path  string `json:"path,omitempty"`
}

// maxScanDepth covers the projects root itself plus the per-source-type
// subdirectories the resolver creates (github/, huggingface/, custom/).
const maxScanDepth = 2

// BuiltinSignatures covers the tools Merlin ships manifests for.
func BuiltinSignatures() []Signature {
	return []Signature{
		{Tool: "comfyui", Dirs: []string{"comfyui"}, Files: []string{"main.py"}, SubDirs: []string{"comfy"}},
		{Tool: "fluxgym", Dirs: []string{"fluxgym"}, Files: []string{"app.py"}},
		{Tool: "onetrainer", Dirs: []string{"onetrainer"}, Files: []string{"start-ui.sh", "start-ui.bat"}},
		{Tool: "open-webui", Dirs: []string{"open-webui"}},
	}
}

// FromDescriptor derives a minimal signature from a manifest entry so that
// tools outside the built-in set are still detectable by folder name.
func FromDescriptor(d core.ToolDescriptor) Signature {
	sig := Signature{
		// Tool names are lowercased so descriptor-derived signatures dedupe
		// against built-ins and callers can join on a canonical key.
		Tool: strings.ToLower(d.Name),
		Dirs: []string{strings.ToLower(d.Folder())},
	}
	if d.RequirementsFile != "" {
		sig.Files = append(sig.Files, d.RequirementsFile)
	}
	return sig
}

// Detector scans a projects root for tool signatures.
type Detector struct {
	root string
	sigs []Signature
}

// New builds a detector over root with the built-in signature set.
func New(root string) *Detector {
	return &Detector{root: root, sigs: BuiltinSignatures()}
}

// Extend registers additional signatures, typically derived from manifest
// descriptors. Signatures for a tool already covered are ignored.
func (d *Detector) Extend(sigs ...Signature) {
	known := make(map[string]struct{}, len(d.sigs))
	for _, s := range d.sigs {
		known[s.Tool] = struct{}{}
	}
	for _, s := range sigs {
		if _, dup := known[s.Tool]; dup || s.Tool == "" || len(s.Dirs) == 0 {
			continue
		}
		d.sigs = append(d.sigs, s)
		known[s.Tool] = struct{}{}
	}
}

// Scan walks the root to a bounded depth and reports one result per known
// signature, sorted by tool name. A missing root yields all-absent results.
func (d *Detector) Scan() []Result {
	dirs := d.collectDirs()

	results := make([]Result, 0, len(d.sigs))
	for _, sig := range d.sigs {
		results = append(results, d.match(sig, dirs))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Tool < results[j].Tool })
	return results
}

// collectDirs gathers directories at depths 1..maxScanDepth under the root,
// keyed by lowercase base name. The first match per name wins so repeated
// scans over an unchanged tree return identical paths.
func (d *Detector) collectDirs() map[string][]string {
	found := make(map[string][]string)
	var walk func(dir string, depth int)
	walk = func(dir string, depth int) {
		if depth > maxScanDepth {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			name := strings.ToLower(entry.Name())
			path := filepath.Join(dir, entry.Name())
			found[name] = append(found[name], path)
			walk(path, depth+1)
		}
	}
	walk(d.root, 1)
	for name := range found {
		sort.Strings(found[name])
	}
	return found
}

func (d *Detector) match(sig Signature, dirs map[string][]string) Result {
	for _, candidate := range sig.Dirs {
		for _, path := range dirs[candidate] {
			if !matchesContents(path, sig) {
				continue
			}
			state := StatePresentUnconfigured
			if hasVenv(path) {
				state = StatePresentConfigured
			}
			return Result{Tool: sig.Tool, State: state, Path: path}
		}
	}
	return Result{Tool: sig.Tool, State: StateAbsent}
}

// matchesContents confirms the directory looks like the tool: any one
// characteristic file or subdirectory suffices. A signature with neither
// matches on the directory name alone.
func matchesContents(path string, sig Signature) bool {
	if len(sig.Files) == 0 && len(sig.SubDirs) == 0 {
		return true
	}
	for _, f := range sig.Files {
		if info, err := os.Stat(filepath.Join(path, f)); err == nil && !info.IsDir() {
			return true
		}
	}
	for _, sub := range sig.SubDirs {
		if info, err := os.Stat(filepath.Join(path, sub)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

func hasVenv(path string) bool {
	for _, env := range []string{".venv", "venv"} {
		if info, err := os.Stat(filepath.Join(path, env)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}
