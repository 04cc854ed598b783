package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/merlin-labs/merlin/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "merlin",
	Short: "Manifest-driven installer for AI/ML tools",
	Long:  "Merlin resolves, installs, and tracks AI/ML developer tools from shareable manifests.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("aiml-home", "", "Install root (overrides AIML_PROJECTS_HOME)")
	rootCmd.PersistentFlags().String("config", "", "Path to merlin.yaml config file")
	rootCmd.PersistentFlags().BoolP("verbose", "", false, "Enable verbose/debug logging")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("merlin version %s\n", version))

	rootCmd.AddCommand(cli.NewStatusCmd())
	rootCmd.AddCommand(cli.NewInstallCmd())
	rootCmd.AddCommand(cli.NewSmartInstallCmd())
	rootCmd.AddCommand(cli.NewDetectCmd())
	rootCmd.AddCommand(cli.NewManifestsCmd())
	rootCmd.AddCommand(cli.NewModelsCmd())
	rootCmd.AddCommand(cli.NewChatCmd())
	rootCmd.AddCommand(cli.NewConfigCmd())
	rootCmd.AddCommand(cli.NewServeCmd())
}
