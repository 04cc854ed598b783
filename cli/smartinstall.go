package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/merlin-labs/merlin/detect"
	"github.com/merlin-labs/merlin/exec"
)

// NewSmartInstallCmd creates the "smart-install" subcommand.
func NewSmartInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smart-install",
		Short: "Install everything the manifest lists that is not yet present",
		Long: "smart-install compares the manifest against the detector's view of the\n" +
			"projects root and installs the tools that are missing. With --add-repo it\n" +
			"first auto-configures a descriptor from the repository's README and adds\n" +
			"it to the manifest.",
		RunE: runSmartInstall,
	}
	cmd.Flags().String("manifest", "", "Manifest name (default: default)")
	cmd.Flags().String("add-repo", "", "Auto-configure a tool from a repository URL first")
	cmd.Flags().Bool("yes", false, "Run inferred steps without confirmation")
	cmd.Flags().Bool("dry-run", false, "Print steps without running them")
	return cmd
}

func runSmartInstall(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	m, err := a.loadManifest(cmd)
	if err != nil {
		return err
	}

	if repo, _ := cmd.Flags().GetString("add-repo"); repo != "" {
		tool, err := a.resolver.AutoConfigure(cmd.Context(), repo, "")
		if err != nil {
			return exitError(exitFor(err), "auto-configuring %q: %v", repo, err)
		}
		m.Upsert(tool)
		if err := a.store.Save(manifestName(cmd), m); err != nil {
			return exitError(exitRuntime, "saving manifest: %v", err)
		}
		a.detector.Extend(detect.FromDescriptor(tool))
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s to manifest %s\n", tool.Name, manifestName(cmd))
	}

	if len(m.Tools) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Manifest is empty; nothing to install.")
		return nil
	}

	// Detector tool names are lowercase; manifest names may not be.
	present := make(map[string]bool)
	for _, r := range a.detector.Scan() {
		present[r.Tool] = r.State != detect.StateAbsent
	}

	allowInferred, _ := cmd.Flags().GetBool("yes")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	installed, skipped, failed := 0, 0, 0
	for _, tool := range m.Tools {
		if present[strings.ToLower(tool.Name)] {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: already present, skipping\n", tool.Name)
			skipped++
			continue
		}

		plan, err := a.resolver.Resolve(cmd.Context(), tool)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: cannot resolve: %v\n", tool.Name, err)
			failed++
			continue
		}
		if plan.HasInferred() && !allowInferred {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: plan has inferred steps, skipping (use --yes)\n", tool.Name)
			skipped++
			continue
		}

		rec, err := a.executor.Execute(cmd.Context(), plan, exec.Options{
			DryRun:        dryRun || a.cfg.DryRun,
			AllowInferred: allowInferred,
		})
		if err != nil {
			printRecord(cmd, rec)
			failed++
			continue
		}
		printRecord(cmd, rec)
		installed++
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Done: %d installed, %d skipped, %d failed\n", installed, skipped, failed)
	if failed > 0 {
		return exitError(exitExecution, "%d tool(s) failed to install", failed)
	}
	return nil
}
