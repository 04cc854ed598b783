package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/merlin-labs/merlin/config"
	"github.com/merlin-labs/merlin/core"
	"github.com/merlin-labs/merlin/detect"
	"github.com/merlin-labs/merlin/exec"
	"github.com/merlin-labs/merlin/llmprovider"
	"github.com/merlin-labs/merlin/manifest"
	"github.com/merlin-labs/merlin/resolve"
)

// ModelCatalog lists locally available models. *llmprovider.Catalog
// satisfies it.
type ModelCatalog interface {
	List(ctx context.Context) ([]llmprovider.ModelInfo, error)
}

// Deps are the collaborators the bridge functions operate on. Records and
// Catalog may be nil; the functions that need them report the absence.
type Deps struct {
	Config    config.Config
	Manifests *manifest.Store
	Resolver  *resolve.Resolver
	Executor  *exec.Executor
	Detector  *detect.Detector
	Records   *manifest.RecordStore
	Catalog   ModelCatalog
}

// New builds a registry with the full Merlin function set.
func New(deps Deps) *Registry {
	r := NewRegistry()
	b := &binder{deps: deps}
	for _, fn := range []Function{
		{
			Name:        "detect",
			Description: "Scan the projects root for installed tools.",
			handler:     b.detect,
		},
		{
			Name:        "status",
			Description: "Report manifest tools with their detected state and install records.",
			Parameters:  map[string]string{"manifest": "manifest name, default \"default\""},
			handler:     b.status,
		},
		{
			Name:        "resolve",
			Description: "Produce an installation plan for a manifest tool or a raw repository URL.",
			Parameters:  map[string]string{"tool": "tool name", "manifest": "manifest name", "url": "repository URL instead of a manifest tool"},
			handler:     b.resolve,
		},
		{
			Name:        "install",
			Description: "Resolve and execute an installation plan.",
			Parameters: map[string]string{
				"tool":           "tool name",
				"manifest":       "manifest name",
				"dry_run":        "log steps without running them",
				"allow_inferred": "permit inferred plan steps",
				"force":          "rerun over an existing record",
				"resume_from":    "skip steps before this index",
			},
			handler: b.install,
		},
		{
			Name:        "manifest.list",
			Description: "List stored manifests.",
			handler:     b.manifestList,
		},
		{
			Name:        "manifest.get",
			Description: "Return one stored manifest.",
			Parameters:  map[string]string{"name": "manifest name"},
			handler:     b.manifestGet,
		},
		{
			Name:        "manifest.save",
			Description: "Validate and store a manifest.",
			Parameters:  map[string]string{"name": "manifest name", "manifest": "manifest object"},
			handler:     b.manifestSave,
		},
		{
			Name:        "manifest.merge",
			Description: "Merge one stored manifest into another under a collision policy.",
			Parameters:  map[string]string{"base": "base manifest name", "incoming": "incoming manifest name", "policy": "replace, skip, or rename"},
			handler:     b.manifestMerge,
		},
		{
			Name:        "manifest.export",
			Description: "Write a sanitized copy of a manifest for sharing.",
			Parameters:  map[string]string{"name": "manifest name", "path": "destination file"},
			handler:     b.manifestExport,
		},
		{
			Name:        "manifest.import",
			Description: "Import an external manifest, re-homing paths to the local root.",
			Parameters:  map[string]string{"path": "source file", "name": "target manifest name", "policy": "collision policy"},
			handler:     b.manifestImport,
		},
		{
			Name:        "models.list",
			Description: "List local Ollama models with use-case recommendations.",
			handler:     b.modelsList,
		},
	} {
		if err := r.Register(fn); err != nil {
			panic(err)
		}
	}
	return r
}

type binder struct {
	deps Deps
}

func (b *binder) manifestName(name string) string {
	if name == "" {
		return manifest.DefaultName
	}
	return name
}

func (b *binder) detect(_ context.Context, _ json.RawMessage) (any, error) {
	return b.deps.Detector.Scan(), nil
}

// ToolStatus is one entry of the status function's return value.
type ToolStatus struct {
	Name   string                   `json:"name"`
	State  detect.State             `json:"state"`
	Path   string                   `json:"path,omitempty"`
	Record *core.InstallationRecord `json:"record,omitempty"`
}

func (b *binder) status(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Manifest string `json:"manifest"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	m, err := b.deps.Manifests.Load(b.manifestName(in.Manifest))
	if err != nil {
		return nil, err
	}

	byTool := make(map[string]detect.Result)
	for _, r := range b.deps.Detector.Scan() {
		byTool[r.Tool] = r
	}

	statuses := make([]ToolStatus, 0, len(m.Tools))
	for _, tool := range m.Tools {
		st := ToolStatus{Name: tool.Name, State: detect.StateAbsent}
		if r, ok := byTool[strings.ToLower(tool.Name)]; ok {
			st.State = r.State
			st.Path = r.Path
		}
		if b.deps.Records != nil && st.Path != "" {
			if rec, ok, err := b.deps.Records.Get(ctx, tool.Name, st.Path); err == nil && ok {
				st.Record = &rec
			}
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

func (b *binder) resolve(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Tool     string `json:"tool"`
		Manifest string `json:"manifest"`
		URL      string `json:"url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	d, err := b.descriptor(in.Tool, in.Manifest, in.URL)
	if err != nil {
		return nil, err
	}
	plan, err := b.deps.Resolver.Resolve(ctx, d)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (b *binder) install(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Tool          string `json:"tool"`
		Manifest      string `json:"manifest"`
		DryRun        bool   `json:"dry_run"`
		AllowInferred bool   `json:"allow_inferred"`
		Force         bool   `json:"force"`
		ResumeFrom    int    `json:"resume_from"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	d, err := b.descriptor(in.Tool, in.Manifest, "")
	if err != nil {
		return nil, err
	}
	plan, err := b.deps.Resolver.Resolve(ctx, d)
	if err != nil {
		return nil, err
	}
	rec, err := b.deps.Executor.Execute(ctx, plan, exec.Options{
		DryRun:        in.DryRun,
		AllowInferred: in.AllowInferred,
		Force:         in.Force,
		ResumeFrom:    in.ResumeFrom,
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// descriptor resolves the target of a resolve/install call: a manifest tool
// by name, or a descriptor synthesized from a raw URL.
func (b *binder) descriptor(tool, manifestName, rawURL string) (core.ToolDescriptor, error) {
	if rawURL != "" {
		return core.ToolDescriptor{
			Name:       resolve.NameFromURL(rawURL),
			URL:        rawURL,
			SourceType: resolve.DetectSourceType(rawURL),
		}, nil
	}
	if tool == "" {
		return core.ToolDescriptor{}, core.Errorf(core.CodeSchema, "either tool or url is required")
	}
	m, err := b.deps.Manifests.Load(b.manifestName(manifestName))
	if err != nil {
		return core.ToolDescriptor{}, err
	}
	d, ok := m.Get(tool)
	if !ok {
		return core.ToolDescriptor{}, core.Errorf(core.CodeSchema, "tool %q not in manifest %q", tool, b.manifestName(manifestName))
	}
	return d, nil
}

func (b *binder) manifestList(_ context.Context, _ json.RawMessage) (any, error) {
	summaries, err := b.deps.Manifests.List()
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

func (b *binder) manifestGet(_ context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Name string `json:"name"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	m, err := b.deps.Manifests.Load(b.manifestName(in.Name))
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (b *binder) manifestSave(_ context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Name     string         `json:"name"`
		Manifest *core.Manifest `json:"manifest"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Manifest == nil {
		return nil, core.Errorf(core.CodeSchema, "manifest object is required")
	}
	name := b.manifestName(in.Name)
	if err := b.deps.Manifests.Save(name, in.Manifest); err != nil {
		return nil, err
	}
	return map[string]string{"path": b.deps.Manifests.Path(name)}, nil
}

func (b *binder) manifestMerge(_ context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Base     string `json:"base"`
		Incoming string `json:"incoming"`
		Policy   string `json:"policy"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	policy, err := manifest.ParsePolicy(in.Policy)
	if err != nil {
		return nil, err
	}
	base, err := b.deps.Manifests.Load(b.manifestName(in.Base))
	if err != nil {
		return nil, err
	}
	if in.Incoming == "" {
		return nil, core.Errorf(core.CodeSchema, "incoming manifest name is required")
	}
	incoming, err := b.deps.Manifests.Load(in.Incoming)
	if err != nil {
		return nil, err
	}
	merged, collisions, err := manifest.Merge(base, incoming, policy)
	if err != nil {
		return nil, err
	}
	if err := b.deps.Manifests.Save(b.manifestName(in.Base), merged); err != nil {
		return nil, err
	}
	return map[string]any{
		"tools":      merged.Names(),
		"collisions": collisions,
	}, nil
}

func (b *binder) manifestExport(_ context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Name string `json:"name"`
		Path string `json:"path"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Path == "" {
		return nil, core.Errorf(core.CodeSchema, "export path is required")
	}
	m, err := b.deps.Manifests.Load(b.manifestName(in.Name))
	if err != nil {
		return nil, err
	}
	if err := manifest.Export(m, in.Path, b.deps.Config.AIMLHome); err != nil {
		return nil, err
	}
	return map[string]string{"path": in.Path}, nil
}

func (b *binder) manifestImport(_ context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Path   string `json:"path"`
		Name   string `json:"name"`
		Policy string `json:"policy"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Path == "" {
		return nil, core.Errorf(core.CodeSchema, "import path is required")
	}
	policy := manifest.PolicySkip
	if in.Policy != "" {
		var err error
		policy, err = manifest.ParsePolicy(in.Policy)
		if err != nil {
			return nil, err
		}
	}
	merged, collisions, err := b.deps.Manifests.Import(in.Path, b.manifestName(in.Name), b.deps.Config.AIMLHome, policy)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"tools":      merged.Names(),
		"collisions": collisions,
	}, nil
}

func (b *binder) modelsList(ctx context.Context, _ json.RawMessage) (any, error) {
	if b.deps.Catalog == nil {
		return nil, fmt.Errorf("bridge: no model catalog configured")
	}
	models, err := b.deps.Catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"models":          models,
		"recommendations": llmprovider.Recommendations(models),
	}, nil
}
