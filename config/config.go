// Package config resolves Merlin's runtime configuration.
//
// Configuration is an explicit record passed into component constructors, not
// ambient global state: resolution order for the install root is flag value,
// then AIML_PROJECTS_HOME, then the config file, then the platform default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	projectConfigName = "merlin.yaml"
	homeConfigDir     = ".merlin"
	homeConfigName    = "config.yaml"

	// EnvAIMLHome overrides the default install root.
	EnvAIMLHome = "AIML_PROJECTS_HOME"

	defaultStepTimeout = 30 * time.Minute
	defaultOutputLimit = 64 * 1024
)

// File is the on-disk YAML configuration shape.
type File struct {
	AIMLHome    string        `yaml:"aiml_projects_home,omitempty"`
	Model       string        `yaml:"model,omitempty"`
	OllamaHost  string        `yaml:"ollama_host,omitempty"`
	StepTimeout time.Duration `yaml:"step_timeout,omitempty"`
	OutputLimit int           `yaml:"output_limit,omitempty"`
	DryRun      bool          `yaml:"dry_run,omitempty"`
}

// Config is the resolved runtime configuration.
type Config struct {
	// AIMLHome is the root under which tools are installed.
	AIMLHome string
	// ManifestDir holds saved manifests (AIMLHome/manifests).
	ManifestDir string
	// RecordDBPath is the SQLite installation-record index (AIMLHome/merlin.db).
	RecordDBPath string
	// Model is the default local model for the resolver's inference path.
	Model string
	// OllamaHost is the Ollama endpoint; empty uses the client default.
	OllamaHost string
	// StepTimeout bounds each plan step.
	StepTimeout time.Duration
	// OutputLimit caps captured output per step, in bytes.
	OutputLimit int
	// DryRun logs commands instead of running them.
	DryRun bool
}

// DiscoverPath resolves the config file location with first-match semantics:
// explicit path, ./merlin.yaml, ~/.merlin/config.yaml.
func DiscoverPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverPathFrom is a testable variant of DiscoverPath.
func DiscoverPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 3)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, homeConfigDir, homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// LoadFile reads and parses one YAML config file.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config: read %q: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return f, nil
}

// Resolve builds the runtime Config. flagHome (from --aiml-home) wins over
// the environment, which wins over the config file, which wins over the
// platform default user directory.
func Resolve(flagHome, configPath string) (Config, error) {
	var f File
	path, found, err := DiscoverPath(configPath)
	if err != nil {
		return Config{}, err
	}
	if found {
		f, err = LoadFile(path)
		if err != nil {
			return Config{}, err
		}
	}
	return ResolveFrom(flagHome, os.Getenv(EnvAIMLHome), f, os.UserHomeDir)
}

// ResolveFrom is a testable variant of Resolve.
func ResolveFrom(flagHome, envHome string, f File, userHome func() (string, error)) (Config, error) {
	home := strings.TrimSpace(flagHome)
	if home == "" {
		home = strings.TrimSpace(envHome)
	}
	if home == "" {
		home = strings.TrimSpace(f.AIMLHome)
	}
	if home == "" {
		userDir, err := userHome()
		if err != nil {
			return Config{}, fmt.Errorf("config: resolve user home: %w", err)
		}
		home = filepath.Join(userDir, "aiml_projects")
	}

	cfg := Config{
		AIMLHome:     home,
		ManifestDir:  filepath.Join(home, "manifests"),
		RecordDBPath: filepath.Join(home, "merlin.db"),
		Model:        strings.TrimSpace(f.Model),
		OllamaHost:   strings.TrimSpace(f.OllamaHost),
		StepTimeout:  f.StepTimeout,
		OutputLimit:  f.OutputLimit,
		DryRun:       f.DryRun,
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = defaultStepTimeout
	}
	if cfg.OutputLimit <= 0 {
		cfg.OutputLimit = defaultOutputLimit
	}
	return cfg, nil
}

// EnsureDirs creates the install root and manifest directory when missing.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.AIMLHome, c.ManifestDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %q: %w", dir, err)
		}
	}
	return nil
}
