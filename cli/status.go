package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/merlin-labs/merlin/detect"
)

// NewStatusCmd creates the "status" subcommand.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show manifest tools and their installation state",
		RunE:  runStatus,
	}
	cmd.Flags().String("manifest", "", "Manifest name (default: default)")
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	m, err := a.loadManifest(cmd)
	if err != nil {
		return err
	}

	byTool := make(map[string]detect.Result)
	for _, r := range a.detector.Scan() {
		byTool[r.Tool] = r
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tSTATE\tPATH")
	for _, tool := range m.Tools {
		state := detect.StateAbsent
		path := ""
		if r, ok := byTool[strings.ToLower(tool.Name)]; ok {
			state = r.State
			path = r.Path
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", tool.Name, state, path)
	}
	if err := w.Flush(); err != nil {
		return exitError(exitRuntime, "writing status: %v", err)
	}
	if len(m.Tools) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tools in manifest. Add some with smart-install --add-repo <url>.")
	}
	return nil
}
