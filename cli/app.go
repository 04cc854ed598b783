// Package cli implements the merlin command surface.
package cli

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/merlin-labs/merlin/config"
	"github.com/merlin-labs/merlin/core"
	"github.com/merlin-labs/merlin/detect"
	"github.com/merlin-labs/merlin/exec"
	"github.com/merlin-labs/merlin/llmprovider"
	"github.com/merlin-labs/merlin/manifest"
	"github.com/merlin-labs/merlin/resolve"
)

// app bundles the wired collaborators every command operates on.
type app struct {
	cfg      config.Config
	store    *manifest.Store
	resolver *resolve.Resolver
	executor *exec.Executor
	detector *detect.Detector
	records  *manifest.RecordStore
	logger   *slog.Logger
}

// newApp resolves configuration from the persistent flags and wires the
// component graph. The installation-record index is opened lazily enough
// that read-only commands still work when the root is missing.
func newApp(cmd *cobra.Command) (*app, error) {
	flagHome, _ := cmd.Flags().GetString("aiml-home")
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Resolve(flagHome, configPath)
	if err != nil {
		return nil, exitError(exitValidation, "resolving configuration: %v", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, exitError(exitRuntime, "preparing directories: %v", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	records, err := manifest.NewRecordStore(cfg.RecordDBPath)
	if err != nil {
		return nil, exitError(exitRuntime, "opening record index: %v", err)
	}

	store := manifest.NewStore(cfg.ManifestDir)
	shell := resolve.NewShell(runtime.GOOS)

	var inferrer resolve.Inferrer
	if client, err := llmprovider.New(llmprovider.DefaultProvider, "", cfg.Model); err == nil {
		inferrer = &resolve.LLMInferrer{Client: client}
	}

	resolver := resolve.New(resolve.Config{
		AIMLHome: cfg.AIMLHome,
		Shell:    shell,
		Fetcher:  &resolve.Fetcher{Client: http.DefaultClient},
		Inferrer: inferrer,
	})

	executor := exec.New(exec.Config{
		Runner:      exec.ShellRunner{Shell: shell},
		Records:     records,
		StepTimeout: cfg.StepTimeout,
		OutputLimit: cfg.OutputLimit,
		Logger:      logger,
	})

	detector := detect.New(cfg.AIMLHome)
	if m, err := store.Load(manifest.DefaultName); err == nil {
		for _, tool := range m.Tools {
			detector.Extend(detect.FromDescriptor(tool))
		}
	}

	return &app{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		executor: executor,
		detector: detector,
		records:  records,
		logger:   logger,
	}, nil
}

// close releases the app's stores.
func (a *app) close() {
	if a.records != nil {
		_ = a.records.Close()
	}
}

// manifestName returns the manifest targeted by --manifest, defaulting to
// the standard one.
func manifestName(cmd *cobra.Command) string {
	name, _ := cmd.Flags().GetString("manifest")
	if name == "" {
		return manifest.DefaultName
	}
	return name
}

// loadManifest loads the targeted manifest, tolerating a missing default by
// returning an empty one.
func (a *app) loadManifest(cmd *cobra.Command) (*core.Manifest, error) {
	name := manifestName(cmd)
	m, err := a.store.Load(name)
	if err != nil {
		if name == manifest.DefaultName && errors.Is(err, os.ErrNotExist) {
			return &core.Manifest{Metadata: core.ManifestMeta{Version: "1.0"}}, nil
		}
		return nil, exitError(exitValidation, "loading manifest %q: %v", name, err)
	}
	return m, nil
}
