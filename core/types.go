// Package core provides the foundational types and interfaces for Merlin.
//
// This package contains:
//   - The manifest data model: ToolDescriptor, Manifest, InstallationRecord
//   - The plan model: Plan, PlanStep, Confidence
//   - Interfaces: LLMClient
package core

import (
	"encoding/json"
	"time"
)

// SourceType identifies where a tool is installed from.
type SourceType string

const (
	SourceGitHub      SourceType = "github"
	SourceHuggingFace SourceType = "huggingface"
	SourceCustom      SourceType = "custom"
	SourcePyPI        SourceType = "pypi"
)

// String returns the string representation of the SourceType.
func (s SourceType) String() string {
	return string(s)
}

// InstallStatus is the lifecycle state of an InstallationRecord.
type InstallStatus string

const (
	StatusNotInstalled InstallStatus = "not_installed"
	StatusInProgress   InstallStatus = "in_progress"
	StatusInstalled    InstallStatus = "installed"
	StatusFailed       InstallStatus = "failed"
)

// ToolDescriptor is the declarative recipe for installing and launching one
// AI/ML tool. Name is the stable key across manifests.
type ToolDescriptor struct {
	Name             string     `json:"name"`
	DisplayName      string     `json:"display_name,omitempty"`
	SourceType       SourceType `json:"source_type,omitempty"`
	URL              string     `json:"url,omitempty"`
	Description      string     `json:"description,omitempty"`
	InstallCommands  []string   `json:"install_commands,omitempty"`
	StartCommand     string     `json:"start_command,omitempty"`
	WebInterface     string     `json:"web_interface,omitempty"`
	GUIMode          bool       `json:"gui_mode,omitempty"`
	FolderName       string     `json:"folder_name,omitempty"`
	UseVenv          bool       `json:"use_venv,omitempty"`
	PythonVersion    string     `json:"python_version,omitempty"`
	RequirementsFile string     `json:"requirements_file,omitempty"`
	AutoConfigured   bool       `json:"auto_configured,omitempty"`

	// Extra holds fields this version of Merlin does not recognize. They are
	// carried through load/save untouched for forward compatibility.
	Extra map[string]json.RawMessage `json:"-"`
}

// Folder returns the on-disk folder for the tool: FolderName when set,
// otherwise Name.
func (d ToolDescriptor) Folder() string {
	if d.FolderName != "" {
		return d.FolderName
	}
	return d.Name
}

// Installable reports whether the descriptor carries enough information for
// the resolver's deterministic path.
func (d ToolDescriptor) Installable() bool {
	return len(d.InstallCommands) > 0
}

// Clone returns a deep copy of the descriptor.
func (d ToolDescriptor) Clone() ToolDescriptor {
	out := d
	out.InstallCommands = append([]string(nil), d.InstallCommands...)
	if d.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(d.Extra))
		for k, v := range d.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// ManifestMeta is the metadata block of a manifest file.
type ManifestMeta struct {
	Version     string `json:"version,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
	LastUpdated string `json:"last_updated,omitempty"`
	Description string `json:"description,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Manifest is a named, versioned collection of tool descriptors. Tools keeps
// insertion order for display; lookup is by name.
type Manifest struct {
	Metadata ManifestMeta     `json:"metadata"`
	Tools    []ToolDescriptor `json:"tools"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Get returns the descriptor with the given name.
func (m *Manifest) Get(name string) (ToolDescriptor, bool) {
	for _, t := range m.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolDescriptor{}, false
}

// Names returns all tool names in manifest order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Tools))
	for _, t := range m.Tools {
		names = append(names, t.Name)
	}
	return names
}

// Upsert inserts the descriptor, or replaces the existing entry with the same
// name in place.
func (m *Manifest) Upsert(d ToolDescriptor) {
	for i := range m.Tools {
		if m.Tools[i].Name == d.Name {
			m.Tools[i] = d
			return
		}
	}
	m.Tools = append(m.Tools, d)
}

// Clone returns a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	out := &Manifest{Metadata: m.Metadata}
	out.Tools = make([]ToolDescriptor, len(m.Tools))
	for i, t := range m.Tools {
		out.Tools[i] = t.Clone()
	}
	if m.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	if m.Metadata.Extra != nil {
		out.Metadata.Extra = make(map[string]json.RawMessage, len(m.Metadata.Extra))
		for k, v := range m.Metadata.Extra {
			out.Metadata.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// Confidence grades how a plan step was obtained.
type Confidence string

const (
	// ConfidenceExact means the step came verbatim from a descriptor or a
	// fenced README block.
	ConfidenceExact Confidence = "exact-match"
	// ConfidenceInferred means the step was produced by an inference strategy
	// and needs human confirmation before execution.
	ConfidenceInferred Confidence = "inferred"
)

// StepKind is the OS-agnostic description of what a plan step does. Raw shell
// text is produced only when a shell adapter renders the step.
type StepKind string

const (
	StepRun       StepKind = "run"        // run a command as given
	StepClone     StepKind = "clone"      // clone the source repository
	StepCreateEnv StepKind = "create-env" // create a virtual environment
	StepInstall   StepKind = "install"    // install dependencies into the env
	StepActivate  StepKind = "activate"   // activate the env (platform-specific)
	StepStart     StepKind = "start"      // launch the tool
)

// PlanStep is one resolved step of an installation plan.
type PlanStep struct {
	Kind       StepKind   `json:"kind"`
	Command    string     `json:"command"`
	Confidence Confidence `json:"confidence"`
}

// Plan is the concrete, ordered install recipe for one tool. Steps execute in
// strict order in Dir.
type Plan struct {
	ToolName   string     `json:"tool_name"`
	SourceType SourceType `json:"source_type"`
	Dir        string     `json:"dir"`
	Steps      []PlanStep `json:"steps"`
}

// HasInferred reports whether any step needs human confirmation.
func (p Plan) HasInferred() bool {
	for _, s := range p.Steps {
		if s.Confidence == ConfidenceInferred {
			return true
		}
	}
	return false
}

// StepResult is the outcome of executing one plan step.
type StepResult struct {
	Command  string        `json:"command"`
	ExitCode int           `json:"exit_code"`
	Output   string        `json:"captured_output"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

// InstallationRecord is the persisted outcome of executing a plan for one
// tool. It is created in_progress, mutated step by step, and finalized to
// installed or failed.
type InstallationRecord struct {
	ID          string        `json:"id"`
	ToolName    string        `json:"tool_name"`
	InstallPath string        `json:"install_path"`
	SourceType  SourceType    `json:"source_type"`
	Status      InstallStatus `json:"status"`
	StepResults []StepResult  `json:"step_results"`
	FailedStep  int           `json:"failed_step"` // index of the failing step, -1 if none
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
}
