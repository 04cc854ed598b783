package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewDetectCmd creates the "detect" subcommand.
func NewDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Scan the projects root for installed tools",
		RunE:  runDetect,
	}
}

func runDetect(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tSTATE\tPATH")
	for _, r := range a.detector.Scan() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Tool, r.State, r.Path)
	}
	if err := w.Flush(); err != nil {
		return exitError(exitRuntime, "writing results: %v", err)
	}
	return nil
}
