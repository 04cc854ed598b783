package resolve

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/merlin-labs/merlin/core"
)

type stubInferrer struct {
	commands []string
	err      error
}

func (s stubInferrer) Infer(context.Context, string) ([]string, error) {
	return s.commands, s.err
}

func readmeServer(t *testing.T, body string) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return &Fetcher{Client: srv.Client(), BaseOverride: srv.URL}
}

func TestResolveDeterministicPath(t *testing.T) {
	r := New(Config{AIMLHome: "/aiml", Shell: NewShell("linux")})
	d := core.ToolDescriptor{
		Name:       "comfyui",
		SourceType: core.SourceGitHub,
		URL:        "https://github.com/comfyanonymous/ComfyUI",
		UseVenv:    true,
		InstallCommands: []string{
			"{{activate}} && pip install -r requirements.txt",
		},
	}

	plan, err := r.Resolve(context.Background(), d)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if plan.Dir != "/aiml/github/comfyui" {
		t.Fatalf("Dir = %q", plan.Dir)
	}
	if len(plan.Steps) != 3 {
		t.Fatalf("len(Steps) = %d, want clone + create-env + install", len(plan.Steps))
	}
	if plan.Steps[0].Kind != core.StepClone || !strings.Contains(plan.Steps[0].Command, "git clone") {
		t.Fatalf("Steps[0] = %+v, want clone", plan.Steps[0])
	}
	if plan.Steps[1].Kind != core.StepCreateEnv {
		t.Fatalf("Steps[1] = %+v, want create-env", plan.Steps[1])
	}
	if want := "source .venv/bin/activate && pip install -r requirements.txt"; plan.Steps[2].Command != want {
		t.Fatalf("Steps[2].Command = %q, want %q", plan.Steps[2].Command, want)
	}
	for i, s := range plan.Steps {
		if s.Confidence != core.ConfidenceExact {
			t.Fatalf("Steps[%d].Confidence = %q, want exact-match", i, s.Confidence)
		}
	}
}

func TestResolveExactSequencePreserved(t *testing.T) {
	r := New(Config{AIMLHome: "/aiml", Shell: NewShell("linux")})
	d := core.ToolDescriptor{
		Name:       "custom-tool",
		SourceType: core.SourceCustom,
		InstallCommands: []string{
			"git clone https://example.com/t.git .",
			"python3 -m venv .venv",
			"pip install .",
		},
	}

	plan, err := r.Resolve(context.Background(), d)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(plan.Steps) != 3 {
		t.Fatalf("len(Steps) = %d, want the descriptor's exact sequence", len(plan.Steps))
	}
	for i, want := range d.InstallCommands {
		if plan.Steps[i].Command != want {
			t.Fatalf("Steps[%d].Command = %q, want %q", i, plan.Steps[i].Command, want)
		}
	}
}

func TestResolveSingleFencedCloneIsExactMatch(t *testing.T) {
	fetcher := readmeServer(t, "## Install\n```bash\ngit clone https://x/y.git\n```\n")
	r := New(Config{AIMLHome: "/aiml", Shell: NewShell("linux"), Fetcher: fetcher})

	plan, err := r.Resolve(context.Background(), core.ToolDescriptor{
		Name:       "y",
		SourceType: core.SourceGitHub,
		URL:        "https://github.com/x/y",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(plan.Steps) != 1 {
		t.Fatalf("len(Steps) = %d, want 1", len(plan.Steps))
	}
	if plan.Steps[0].Confidence != core.ConfidenceExact {
		t.Fatalf("Confidence = %q, want exact-match", plan.Steps[0].Confidence)
	}
	if plan.Steps[0].Kind != core.StepClone {
		t.Fatalf("Kind = %q, want clone", plan.Steps[0].Kind)
	}
}

func TestResolveInferredStepsAreMarked(t *testing.T) {
	fetcher := readmeServer(t, "prose only, no fences")
	r := New(Config{
		AIMLHome: "/aiml",
		Shell:    NewShell("linux"),
		Fetcher:  fetcher,
		Inferrer: stubInferrer{commands: []string{"pip install -r requirements.txt", "rm -rf /"}},
	})

	plan, err := r.Resolve(context.Background(), core.ToolDescriptor{
		Name:       "y",
		SourceType: core.SourceGitHub,
		URL:        "https://github.com/x/y",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	// Clone prepended (nothing clones), then the single allow-listed
	// inferred command; rm -rf is dropped by the allow-list.
	if len(plan.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2: %+v", len(plan.Steps), plan.Steps)
	}
	if plan.Steps[0].Kind != core.StepClone || plan.Steps[0].Confidence != core.ConfidenceExact {
		t.Fatalf("Steps[0] = %+v, want exact clone", plan.Steps[0])
	}
	if plan.Steps[1].Confidence != core.ConfidenceInferred {
		t.Fatalf("Steps[1].Confidence = %q, want inferred", plan.Steps[1].Confidence)
	}
	if !plan.HasInferred() {
		t.Fatal("HasInferred() = false, want true")
	}
}

func TestResolveNoCommandsIsResolutionError(t *testing.T) {
	fetcher := readmeServer(t, "no commands here")
	r := New(Config{AIMLHome: "/aiml", Shell: NewShell("linux"), Fetcher: fetcher})

	_, err := r.Resolve(context.Background(), core.ToolDescriptor{
		Name:       "empty",
		SourceType: core.SourceGitHub,
		URL:        "https://github.com/x/empty",
	})
	if !core.IsCode(err, core.CodeResolution) {
		t.Fatalf("Resolve() error = %v, want code %s", err, core.CodeResolution)
	}
	var me *core.Error
	if !errors.As(err, &me) {
		t.Fatalf("error %v is not a core.Error", err)
	}
	if me.Details["readme_fetched"] != true {
		t.Fatalf("Details = %v, want readme_fetched evidence", me.Details)
	}
}

func TestResolveNoURLNoCommands(t *testing.T) {
	r := New(Config{AIMLHome: "/aiml", Shell: NewShell("linux")})
	_, err := r.Resolve(context.Background(), core.ToolDescriptor{Name: "bare"})
	if !core.IsCode(err, core.CodeResolution) {
		t.Fatalf("Resolve() error = %v, want code %s", err, core.CodeResolution)
	}
}

func TestResolvePyPI(t *testing.T) {
	r := New(Config{AIMLHome: "/aiml", Shell: NewShell("linux")})
	plan, err := r.Resolve(context.Background(), core.ToolDescriptor{
		Name:       "open-webui",
		SourceType: core.SourcePyPI,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Command != "pip install open-webui" {
		t.Fatalf("Steps = %+v", plan.Steps)
	}
}

func TestAutoConfigure(t *testing.T) {
	fetcher := readmeServer(t, "```bash\ngit clone https://github.com/x/fluxy.git\npip install -r requirements.txt\n```\n")
	r := New(Config{AIMLHome: "/aiml", Shell: NewShell("linux"), Fetcher: fetcher})

	d, err := r.AutoConfigure(context.Background(), "https://github.com/x/fluxy.git", "")
	if err != nil {
		t.Fatalf("AutoConfigure() error = %v", err)
	}
	if d.Name != "fluxy" {
		t.Fatalf("Name = %q, want fluxy", d.Name)
	}
	if d.SourceType != core.SourceGitHub {
		t.Fatalf("SourceType = %q", d.SourceType)
	}
	if !d.AutoConfigured {
		t.Fatal("AutoConfigured = false, want true")
	}
	if len(d.InstallCommands) != 2 {
		t.Fatalf("InstallCommands = %v, want 2", d.InstallCommands)
	}
}

func TestNameFromURL(t *testing.T) {
	cases := map[string]string{
		"https://github.com/Nerogar/OneTrainer.git": "onetrainer",
		"https://github.com/cocktailpeanut/fluxgym": "fluxgym",
		"https://huggingface.co/org/model/":         "model",
	}
	for in, want := range cases {
		if got := NameFromURL(in); got != want {
			t.Fatalf("NameFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveBareReadmeCloneTargetsPlanDir(t *testing.T) {
	fetcher := readmeServer(t, "```bash\ngit clone https://x/y.git\npip install -r requirements.txt\n```\n")
	r := New(Config{AIMLHome: "/aiml", Shell: NewShell("linux"), Fetcher: fetcher})

	plan, err := r.Resolve(context.Background(), core.ToolDescriptor{
		Name:       "y",
		SourceType: core.SourceGitHub,
		URL:        "https://github.com/x/y",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2: %+v", len(plan.Steps), plan.Steps)
	}
	// Steps run with the plan dir as working directory; a bare clone must
	// check out there, not one level below where the install step looks.
	if want := "git clone https://x/y.git ."; plan.Steps[0].Command != want {
		t.Fatalf("Steps[0].Command = %q, want %q", plan.Steps[0].Command, want)
	}
	if want := "pip install -r requirements.txt"; plan.Steps[1].Command != want {
		t.Fatalf("Steps[1].Command = %q, want %q", plan.Steps[1].Command, want)
	}
}

func TestResolveDescriptorBareCloneTargetsPlanDir(t *testing.T) {
	r := New(Config{AIMLHome: "/aiml", Shell: NewShell("linux")})
	d := core.ToolDescriptor{
		Name:       "t",
		SourceType: core.SourceCustom,
		InstallCommands: []string{
			"git clone https://example.com/t.git",
			"pip install .",
		},
	}

	plan, err := r.Resolve(context.Background(), d)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := "git clone https://example.com/t.git ."; plan.Steps[0].Command != want {
		t.Fatalf("Steps[0].Command = %q, want %q", plan.Steps[0].Command, want)
	}
}
