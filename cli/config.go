package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/merlin-labs/merlin/config"
)

// NewConfigCmd creates the "config" subcommand.
func NewConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		RunE:  runConfig,
	}
}

func runConfig(cmd *cobra.Command, _ []string) error {
	flagHome, _ := cmd.Flags().GetString("aiml-home")
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Resolve(flagHome, configPath)
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}

	path, found, err := config.DiscoverPath(configPath)
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}
	source := "defaults"
	if found {
		source = path
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "config file\t%s\n", source)
	fmt.Fprintf(w, "aiml_projects_home\t%s\n", cfg.AIMLHome)
	fmt.Fprintf(w, "manifest_dir\t%s\n", cfg.ManifestDir)
	fmt.Fprintf(w, "record_db\t%s\n", cfg.RecordDBPath)
	fmt.Fprintf(w, "model\t%s\n", valueOrDefault(cfg.Model, "(client default)"))
	fmt.Fprintf(w, "ollama_host\t%s\n", valueOrDefault(cfg.OllamaHost, "(client default)"))
	fmt.Fprintf(w, "step_timeout\t%s\n", cfg.StepTimeout)
	fmt.Fprintf(w, "output_limit\t%d bytes\n", cfg.OutputLimit)
	fmt.Fprintf(w, "dry_run\t%t\n", cfg.DryRun)
	return w.Flush()
}

func valueOrDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
