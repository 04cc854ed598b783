package resolve

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Shell renders OS-agnostic plan steps into platform-correct command text.
// Plans store abstract steps; only the adapter knows activation syntax and
// interpreter names per platform.
type Shell struct {
	goos string
}

// NewShell creates an adapter for the given GOOS; empty uses the host.
func NewShell(goos string) Shell {
	if goos == "" {
		goos = runtime.GOOS
	}
	return Shell{goos: goos}
}

// Windows reports whether the adapter targets Windows shell syntax.
func (s Shell) Windows() bool {
	return s.goos == "windows"
}

// Python returns the interpreter name for the platform.
func (s Shell) Python() string {
	if s.Windows() {
		return "python"
	}
	return "python3"
}

// Activate returns the command that activates a virtual environment at
// envDir relative to the tool directory.
func (s Shell) Activate(envDir string) string {
	if s.Windows() {
		return filepath.Join(envDir, "Scripts", "activate.bat")
	}
	return "source " + envDir + "/bin/activate"
}

// CreateEnv returns the command that creates a virtual environment.
func (s Shell) CreateEnv(useUV bool) string {
	if useUV {
		return "uv venv .venv"
	}
	return s.Python() + " -m venv .venv"
}

// Invocation returns the shell binary and arguments that execute one rendered
// command line.
func (s Shell) Invocation(command string) (string, []string) {
	if s.Windows() {
		return "cmd", []string{"/C", command}
	}
	return "/bin/sh", []string{"-c", command}
}

// Render substitutes placeholders in an abstract command:
// {{install_dir}}, {{install_root}}, {{python}}, {{activate}}.
func (s Shell) Render(command, installRoot, installDir string) string {
	r := strings.NewReplacer(
		"{{install_dir}}", installDir,
		"{{install_root}}", installRoot,
		"{{python}}", s.Python(),
		"{{activate}}", s.Activate(".venv"),
	)
	return r.Replace(command)
}
