package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/merlin-labs/merlin/llmprovider"
)

// NewModelsCmd creates the "models" subcommand.
func NewModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List local Ollama models with use-case recommendations",
		RunE:  runModels,
	}
	cmd.Flags().String("ollama-host", "", "Ollama endpoint (default: OLLAMA_HOST or localhost)")
	return cmd
}

func runModels(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	host, _ := cmd.Flags().GetString("ollama-host")
	if host == "" {
		host = a.cfg.OllamaHost
	}
	catalog, err := llmprovider.NewCatalog(host)
	if err != nil {
		return exitError(exitRuntime, "connecting to ollama: %v", err)
	}
	models, err := catalog.List(cmd.Context())
	if err != nil {
		return exitError(exitRuntime, "listing models: %v", err)
	}
	if len(models) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No models installed. Pull one with: ollama pull llama3.1")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tFAMILY\tPARAMS\tSIZE")
	for _, m := range models {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f GB\n", m.Name, m.Family, m.ParameterSize, m.SizeGB)
	}
	if err := w.Flush(); err != nil {
		return exitError(exitRuntime, "writing models: %v", err)
	}

	rec := llmprovider.Recommendations(models)
	buckets := make([]string, 0, len(rec))
	for bucket := range rec {
		buckets = append(buckets, bucket)
	}
	sort.Strings(buckets)
	fmt.Fprintln(cmd.OutOrStdout())
	for _, bucket := range buckets {
		if len(rec[bucket]) == 0 {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", bucket, rec[bucket])
	}
	return nil
}
