// Package resolve turns tool descriptors (or raw repository URLs plus README
// text) into ordered, executable installation plans.
//
// Two paths exist. The deterministic path renders a descriptor's own
// install_commands with placeholder substitution and platform shell syntax;
// every step is exact-match. The inference path fetches the README, extracts
// fenced code blocks, optionally consults a local model, and filters every
// candidate against a safe-verb allow-list; extracted steps are exact-match,
// model-produced steps are inferred and need human confirmation.
package resolve

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/merlin-labs/merlin/core"
)

// Config wires a Resolver. All collaborators are explicit; there is no
// ambient state.
type Config struct {
	// AIMLHome is the install root used for plan directories and placeholder
	// substitution.
	AIMLHome string
	// Shell renders platform-correct command text.
	Shell Shell
	// Fetcher retrieves READMEs for the inference path. Nil disables it.
	Fetcher *Fetcher
	// Inferrer is the optional model-backed strategy. Nil degrades the
	// inference path to fenced-block extraction only.
	Inferrer Inferrer
}

// Resolver produces installation plans.
type Resolver struct {
	home     string
	shell    Shell
	fetcher  *Fetcher
	inferrer Inferrer
}

// New creates a Resolver from the given config.
func New(cfg Config) *Resolver {
	return &Resolver{
		home:     cfg.AIMLHome,
		shell:    cfg.Shell,
		fetcher:  cfg.Fetcher,
		inferrer: cfg.Inferrer,
	}
}

// DetectSourceType classifies a repository URL.
func DetectSourceType(rawURL string) core.SourceType {
	switch {
	case strings.Contains(rawURL, "github.com"):
		return core.SourceGitHub
	case strings.Contains(rawURL, "huggingface.co"):
		return core.SourceHuggingFace
	default:
		return core.SourceCustom
	}
}

// Dir returns the install directory for a descriptor: the per-source
// subdirectory of the AIML root plus the tool folder.
func (r *Resolver) Dir(d core.ToolDescriptor) string {
	switch d.SourceType {
	case core.SourceGitHub:
		return filepath.Join(r.home, "github", d.Folder())
	case core.SourceHuggingFace:
		return filepath.Join(r.home, "huggingface", d.Folder())
	case core.SourcePyPI:
		return r.home
	default:
		return filepath.Join(r.home, "custom", d.Folder())
	}
}

// Resolve produces the installation plan for a descriptor. Descriptors with
// install_commands take the deterministic path; descriptors carrying only a
// URL take the inference path.
func (r *Resolver) Resolve(ctx context.Context, d core.ToolDescriptor) (core.Plan, error) {
	if d.SourceType == core.SourcePyPI {
		return r.pypiPlan(d), nil
	}
	if d.Installable() {
		return r.deterministicPlan(d), nil
	}
	if strings.TrimSpace(d.URL) == "" {
		return core.Plan{}, core.Errorf(core.CodeResolution,
			"tool %q has no install commands and no source URL", d.Name)
	}
	candidates, evidence, err := r.inferCandidates(ctx, d.URL)
	if err != nil {
		return core.Plan{}, err
	}
	return r.assemble(d, candidates, evidence)
}

func (r *Resolver) pypiPlan(d core.ToolDescriptor) core.Plan {
	cmd := "pip install " + d.Name
	if d.UseVenv {
		cmd = "uv pip install " + d.Name
	}
	return core.Plan{
		ToolName:   d.Name,
		SourceType: core.SourcePyPI,
		Dir:        r.home,
		Steps: []core.PlanStep{
			{Kind: core.StepInstall, Command: cmd, Confidence: core.ConfidenceExact},
		},
	}
}

func (r *Resolver) deterministicPlan(d core.ToolDescriptor) core.Plan {
	dir := r.Dir(d)
	plan := core.Plan{ToolName: d.Name, SourceType: d.SourceType, Dir: dir}

	if needsClone(d, d.InstallCommands) {
		plan.Steps = append(plan.Steps, core.PlanStep{
			Kind:       core.StepClone,
			Command:    fmt.Sprintf("git clone %s %s", d.URL, dir),
			Confidence: core.ConfidenceExact,
		})
	}
	if d.UseVenv && !mentionsEnvCreation(d.InstallCommands) {
		plan.Steps = append(plan.Steps, core.PlanStep{
			Kind:       core.StepCreateEnv,
			Command:    r.shell.CreateEnv(true),
			Confidence: core.ConfidenceExact,
		})
	}
	for _, cmd := range d.InstallCommands {
		cmd = retargetClone(cmd)
		plan.Steps = append(plan.Steps, core.PlanStep{
			Kind:       classifyKind(cmd),
			Command:    r.shell.Render(cmd, r.home, dir),
			Confidence: core.ConfidenceExact,
		})
	}
	return plan
}

type candidate struct {
	command    string
	confidence core.Confidence
}

type evidence struct {
	readmeFetched bool
	blocksFound   int
	dropped       int
}

// inferCandidates runs the README pipeline. Model failure is tolerated: it
// degrades the result to extraction-only rather than failing the resolve.
func (r *Resolver) inferCandidates(ctx context.Context, repoURL string) ([]candidate, evidence, error) {
	ev := evidence{}
	if r.fetcher == nil {
		return nil, ev, core.Errorf(core.CodeResolution, "no README fetcher configured for %s", repoURL)
	}
	readme, err := r.fetcher.Fetch(ctx, repoURL)
	if err != nil {
		return nil, ev, core.NewError(core.CodeResolution,
			fmt.Sprintf("cannot fetch README for %s", repoURL), err).
			WithDetails(map[string]any{"readme_fetched": false})
	}
	ev.readmeFetched = true

	seen := make(map[string]struct{})
	var out []candidate
	extracted := ExtractCommands(readme)
	ev.blocksFound = len(extracted)
	for _, cmd := range extracted {
		if !Allowed(cmd) {
			ev.dropped++
			continue
		}
		if _, dup := seen[cmd]; dup {
			continue
		}
		seen[cmd] = struct{}{}
		out = append(out, candidate{command: cmd, confidence: core.ConfidenceExact})
	}

	if r.inferrer != nil {
		inferred, err := r.inferrer.Infer(ctx, readme)
		if err == nil {
			for _, cmd := range inferred {
				if !Allowed(cmd) {
					ev.dropped++
					continue
				}
				if _, dup := seen[cmd]; dup {
					continue
				}
				seen[cmd] = struct{}{}
				out = append(out, candidate{command: cmd, confidence: core.ConfidenceInferred})
			}
		}
	}
	return out, ev, nil
}

func (r *Resolver) assemble(d core.ToolDescriptor, candidates []candidate, ev evidence) (core.Plan, error) {
	if len(candidates) == 0 {
		return core.Plan{}, core.Errorf(core.CodeResolution,
			"no install commands found for %q", d.Name).
			WithDetails(map[string]any{
				"readme_fetched": ev.readmeFetched,
				"blocks_found":   ev.blocksFound,
				"dropped":        ev.dropped,
			})
	}

	dir := r.Dir(d)
	plan := core.Plan{ToolName: d.Name, SourceType: d.SourceType, Dir: dir}
	commands := make([]string, 0, len(candidates))
	for _, c := range candidates {
		commands = append(commands, c.command)
	}
	if needsClone(d, commands) {
		plan.Steps = append(plan.Steps, core.PlanStep{
			Kind:       core.StepClone,
			Command:    fmt.Sprintf("git clone %s %s", d.URL, dir),
			Confidence: core.ConfidenceExact,
		})
	}
	for _, c := range candidates {
		cmd := retargetClone(c.command)
		plan.Steps = append(plan.Steps, core.PlanStep{
			Kind:       classifyKind(cmd),
			Command:    r.shell.Render(cmd, r.home, dir),
			Confidence: c.confidence,
		})
	}
	return plan, nil
}

// AutoConfigure builds a descriptor from a bare repository URL by running the
// inference path and recording the discovered commands. The descriptor is
// marked auto_configured; callers are expected to review it before install.
func (r *Resolver) AutoConfigure(ctx context.Context, repoURL, name string) (core.ToolDescriptor, error) {
	source := DetectSourceType(repoURL)
	if name == "" {
		name = NameFromURL(repoURL)
	}
	candidates, ev, err := r.inferCandidates(ctx, repoURL)
	if err != nil {
		return core.ToolDescriptor{}, err
	}
	if len(candidates) == 0 {
		return core.ToolDescriptor{}, core.Errorf(core.CodeResolution,
			"no install commands found for %s", repoURL).
			WithDetails(map[string]any{
				"readme_fetched": ev.readmeFetched,
				"blocks_found":   ev.blocksFound,
			})
	}

	d := core.ToolDescriptor{
		Name:           name,
		DisplayName:    name,
		SourceType:     source,
		URL:            repoURL,
		AutoConfigured: true,
	}
	for _, c := range candidates {
		d.InstallCommands = append(d.InstallCommands, c.command)
	}
	return d, nil
}

// NameFromURL derives a tool name from the last path segment of a URL.
func NameFromURL(rawURL string) string {
	clean := strings.TrimSuffix(strings.TrimRight(strings.TrimSpace(rawURL), "/"), ".git")
	if i := strings.LastIndex(clean, "/"); i >= 0 {
		clean = clean[i+1:]
	}
	return strings.ToLower(clean)
}

// retargetClone rewrites a bare "git clone <url>" to clone into the step's
// working directory. Every step runs inside the plan dir, so a bare clone
// would otherwise nest the checkout one level below where later steps look.
// Commands that already name a target or carry flags are left alone.
func retargetClone(cmd string) string {
	clean := strings.TrimSpace(cmd)
	if !strings.HasPrefix(clean, "git clone") {
		return cmd
	}
	if fields := strings.Fields(clean); len(fields) == 3 {
		return clean + " ."
	}
	return cmd
}

func needsClone(d core.ToolDescriptor, commands []string) bool {
	if d.URL == "" {
		return false
	}
	if d.SourceType != core.SourceGitHub && d.SourceType != core.SourceHuggingFace {
		return false
	}
	for _, cmd := range commands {
		if strings.Contains(cmd, "git clone") {
			return false
		}
	}
	return true
}

func mentionsEnvCreation(commands []string) bool {
	for _, cmd := range commands {
		if strings.Contains(cmd, "uv venv") || strings.Contains(cmd, "-m venv") {
			return true
		}
	}
	return false
}

func classifyKind(cmd string) core.StepKind {
	clean := strings.TrimSpace(cmd)
	switch {
	case strings.HasPrefix(clean, "git clone"):
		return core.StepClone
	case strings.Contains(clean, "uv venv") || strings.Contains(clean, "-m venv"):
		return core.StepCreateEnv
	case strings.HasPrefix(clean, "source ") || strings.Contains(clean, "activate"):
		return core.StepActivate
	case strings.Contains(clean, "install"):
		return core.StepInstall
	default:
		return core.StepRun
	}
}
