package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/merlin-labs/merlin/core"
	"github.com/merlin-labs/merlin/manifest"
)

// newTestRoot creates a fresh cobra root command wired to all subcommands.
// Each test gets an isolated command tree to avoid shared state.
func newTestRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "merlin",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("aiml-home", "", "Install root")
	root.PersistentFlags().String("config", "", "Config file path")
	root.PersistentFlags().Bool("verbose", false, "Debug logging")
	root.AddCommand(NewStatusCmd())
	root.AddCommand(NewInstallCmd())
	root.AddCommand(NewSmartInstallCmd())
	root.AddCommand(NewDetectCmd())
	root.AddCommand(NewManifestsCmd())
	root.AddCommand(NewConfigCmd())
	return root
}

// executeCommand runs a cobra command with the given args and captures stdout/stderr.
func executeCommand(root *cobra.Command, args ...string) (stdout, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

// seedManifest stores a default manifest with the given tools under home.
func seedManifest(t *testing.T, home string, tools ...core.ToolDescriptor) {
	t.Helper()
	store := manifest.NewStore(filepath.Join(home, "manifests"))
	m := &core.Manifest{
		Metadata: core.ManifestMeta{Version: "1.0"},
		Tools:    tools,
	}
	if err := store.Save(manifest.DefaultName, m); err != nil {
		t.Fatal(err)
	}
}

func comfyuiDescriptor() core.ToolDescriptor {
	return core.ToolDescriptor{
		Name:            "comfyui",
		SourceType:      core.SourceGitHub,
		URL:             "https://github.com/comfyanonymous/ComfyUI",
		InstallCommands: []string{"pip install -r requirements.txt"},
	}
}

// --- Status command tests ---

func TestStatus_EmptyManifest(t *testing.T) {
	home := t.TempDir()
	root := newTestRoot()
	stdout, _, err := executeCommand(root, "status", "--aiml-home", home)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !strings.Contains(stdout, "No tools in manifest") {
		t.Errorf("expected empty-manifest hint, got: %q", stdout)
	}
}

func TestStatus_ListsManifestTools(t *testing.T) {
	home := t.TempDir()
	seedManifest(t, home, comfyuiDescriptor())

	root := newTestRoot()
	stdout, _, err := executeCommand(root, "status", "--aiml-home", home)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !strings.Contains(stdout, "comfyui") {
		t.Errorf("expected comfyui row, got: %q", stdout)
	}
	if !strings.Contains(stdout, "absent") {
		t.Errorf("expected absent state, got: %q", stdout)
	}
}

// --- Install command tests ---

func TestInstall_DryRun(t *testing.T) {
	home := t.TempDir()
	seedManifest(t, home, comfyuiDescriptor())

	root := newTestRoot()
	stdout, _, err := executeCommand(root, "install", "comfyui", "--dry-run", "--aiml-home", home)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !strings.Contains(stdout, "Plan for comfyui") {
		t.Errorf("expected plan header, got: %q", stdout)
	}
	if !strings.Contains(stdout, "git clone") {
		t.Errorf("expected clone step in plan, got: %q", stdout)
	}
	if !strings.Contains(stdout, "installed at") {
		t.Errorf("expected install summary, got: %q", stdout)
	}
}

func TestInstall_UnknownTool(t *testing.T) {
	home := t.TempDir()
	seedManifest(t, home, comfyuiDescriptor())

	root := newTestRoot()
	_, _, err := executeCommand(root, "install", "nosuch", "--aiml-home", home)
	if err == nil {
		t.Fatal("expected error for tool missing from manifest")
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != exitValidation {
		t.Fatalf("expected validation exit code, got: %v", err)
	}
}

// --- Detect command tests ---

func TestDetect_FindsUnconfiguredTool(t *testing.T) {
	home := t.TempDir()
	dir := filepath.Join(home, "fluxgym")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.py"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	root := newTestRoot()
	stdout, _, err := executeCommand(root, "detect", "--aiml-home", home)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !strings.Contains(stdout, "fluxgym") {
		t.Errorf("expected fluxgym row, got: %q", stdout)
	}
	if !strings.Contains(stdout, "present-unconfigured") {
		t.Errorf("expected present-unconfigured state, got: %q", stdout)
	}
}

// --- Manifests command tests ---

func TestManifests_List(t *testing.T) {
	home := t.TempDir()
	seedManifest(t, home, comfyuiDescriptor())

	root := newTestRoot()
	stdout, _, err := executeCommand(root, "manifests", "list", "--aiml-home", home)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !strings.Contains(stdout, "default") {
		t.Errorf("expected default manifest row, got: %q", stdout)
	}
}

func TestManifests_ListEmpty(t *testing.T) {
	home := t.TempDir()
	root := newTestRoot()
	stdout, _, err := executeCommand(root, "manifests", "list", "--aiml-home", home)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !strings.Contains(stdout, "No manifests stored") {
		t.Errorf("expected empty-store hint, got: %q", stdout)
	}
}

func TestManifests_ExportImportRoundTrip(t *testing.T) {
	home := t.TempDir()
	seedManifest(t, home, comfyuiDescriptor())
	exportPath := filepath.Join(t.TempDir(), "shared.json")

	root := newTestRoot()
	stdout, _, err := executeCommand(root, "manifests", "export", exportPath, "--aiml-home", home)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(stdout, "Exported 1 tool(s)") {
		t.Errorf("expected export summary, got: %q", stdout)
	}

	otherHome := t.TempDir()
	root = newTestRoot()
	stdout, _, err = executeCommand(root, "manifests", "import", exportPath, "--aiml-home", otherHome)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(stdout, "1 tool(s)") {
		t.Errorf("expected import summary, got: %q", stdout)
	}
}

func TestManifests_ImportBadPolicy(t *testing.T) {
	home := t.TempDir()
	root := newTestRoot()
	_, _, err := executeCommand(root, "manifests", "import", "x.json", "--policy", "clobber", "--aiml-home", home)
	if err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

// --- Config command tests ---

func TestConfig_ShowsResolvedHome(t *testing.T) {
	home := t.TempDir()
	root := newTestRoot()
	stdout, _, err := executeCommand(root, "config", "--aiml-home", home)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !strings.Contains(stdout, home) {
		t.Errorf("expected resolved home in output, got: %q", stdout)
	}
	if !strings.Contains(stdout, "step_timeout") {
		t.Errorf("expected step_timeout row, got: %q", stdout)
	}
}

// --- Exit code mapping tests ---

func TestExitForMapsErrorCodes(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{core.CodeParse, exitValidation},
		{core.CodeSchema, exitValidation},
		{core.CodeResolution, exitResolution},
		{core.CodeConflict, exitConflict},
		{core.CodeExecution, exitExecution},
		{core.CodeTimeout, exitTimeout},
	}
	for _, tc := range cases {
		err := core.NewError(tc.code, "boom", nil)
		if got := exitFor(err); got != tc.want {
			t.Errorf("exitFor(%s) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestExitForUnknownError(t *testing.T) {
	if got := exitFor(os.ErrClosed); got != exitRuntime {
		t.Errorf("exitFor(plain error) = %d, want %d", got, exitRuntime)
	}
}

// --- Root command tests ---

func TestRoot_Help(t *testing.T) {
	root := newTestRoot()
	stdout, _, err := executeCommand(root, "--help")
	if err != nil {
		t.Fatalf("--help should not error, got: %v", err)
	}
	for _, name := range []string{"status", "install", "smart-install", "detect", "manifests"} {
		if !strings.Contains(stdout, name) {
			t.Errorf("help should list %q command", name)
		}
	}
}

func TestSmartInstall_SkipsPresentToolMixedCase(t *testing.T) {
	home := t.TempDir()
	dir := filepath.Join(home, "comfyui")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.py"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := comfyuiDescriptor()
	d.Name = "ComfyUI"
	seedManifest(t, home, d)

	root := newTestRoot()
	stdout, _, err := executeCommand(root, "smart-install", "--dry-run", "--aiml-home", home)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !strings.Contains(stdout, "already present, skipping") {
		t.Errorf("expected detector match despite case difference, got: %q", stdout)
	}
	if !strings.Contains(stdout, "0 installed, 1 skipped") {
		t.Errorf("expected skip summary, got: %q", stdout)
	}
}

func TestParseFunctionCall(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		fn    string
		ok    bool
	}{
		{"bare object", `{"function": "detect", "args": {}}`, "detect", true},
		{"fenced", "```json\n{\"function\": \"status\", \"args\": {}}\n```", "status", true},
		{"leading prose", `Sure: {"function": "detect", "args": {}}`, "detect", true},
		{"trailing prose ending in brace", `{"function": "detect", "args": {}} then I report {results}`, "detect", true},
		{"plain prose", "sure, I can help with that", "", false},
		{"object without function", `{"tool": "comfyui"}`, "", false},
	}
	for _, tc := range cases {
		fn, _, ok := parseFunctionCall(tc.reply)
		if ok != tc.ok || fn != tc.fn {
			t.Errorf("%s: parseFunctionCall() = (%q, %t), want (%q, %t)", tc.name, fn, ok, tc.fn, tc.ok)
		}
	}
}
