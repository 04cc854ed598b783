package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/merlin-labs/merlin/core"
	"github.com/merlin-labs/merlin/exec"
)

// NewInstallCmd creates the "install" subcommand.
func NewInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install <tool>",
		Short: "Resolve and execute a tool's installation plan",
		Args:  cobra.ExactArgs(1),
		RunE:  runInstall,
	}
	cmd.Flags().String("manifest", "", "Manifest name (default: default)")
	cmd.Flags().Bool("dry-run", false, "Print each step without running it")
	cmd.Flags().Bool("yes", false, "Run inferred steps without confirmation")
	cmd.Flags().Bool("force", false, "Reinstall over an existing record")
	cmd.Flags().Int("resume-from", 0, "Skip steps before this index")
	return cmd
}

func runInstall(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	m, err := a.loadManifest(cmd)
	if err != nil {
		return err
	}
	tool, ok := m.Get(args[0])
	if !ok {
		return exitError(exitValidation, "tool %q not in manifest %q", args[0], manifestName(cmd))
	}

	plan, err := a.resolver.Resolve(cmd.Context(), tool)
	if err != nil {
		return exitError(exitFor(err), "resolving %q: %v", tool.Name, err)
	}

	printPlan(cmd, plan)

	allowInferred, _ := cmd.Flags().GetBool("yes")
	if plan.HasInferred() && !allowInferred {
		return exitError(exitResolution,
			"plan for %q contains inferred steps; rerun with --yes to confirm", tool.Name)
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	force, _ := cmd.Flags().GetBool("force")
	resumeFrom, _ := cmd.Flags().GetInt("resume-from")

	rec, err := a.executor.Execute(cmd.Context(), plan, exec.Options{
		DryRun:        dryRun || a.cfg.DryRun,
		AllowInferred: allowInferred,
		Force:         force,
		ResumeFrom:    resumeFrom,
	})
	if err != nil {
		printRecord(cmd, rec)
		return exitError(exitFor(err), "installing %q: %v", tool.Name, err)
	}
	printRecord(cmd, rec)
	return nil
}

func printPlan(cmd *cobra.Command, plan core.Plan) {
	fmt.Fprintf(cmd.OutOrStdout(), "Plan for %s (%d steps, dir %s):\n", plan.ToolName, len(plan.Steps), plan.Dir)
	for i, step := range plan.Steps {
		marker := " "
		if step.Confidence == core.ConfidenceInferred {
			marker = "?"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %2d %s [%s] %s\n", i, marker, step.Kind, step.Command)
	}
}

func printRecord(cmd *cobra.Command, rec core.InstallationRecord) {
	switch rec.Status {
	case core.StatusInstalled:
		fmt.Fprintf(cmd.OutOrStdout(), "%s installed at %s (%d steps)\n",
			rec.ToolName, rec.InstallPath, len(rec.StepResults))
	case core.StatusFailed:
		fmt.Fprintf(cmd.OutOrStdout(), "%s failed at step %d after %d step(s)\n",
			rec.ToolName, rec.FailedStep, len(rec.StepResults))
		if rec.FailedStep >= 0 && rec.FailedStep < len(rec.StepResults) {
			out := rec.StepResults[rec.FailedStep].Output
			if out != "" {
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
		}
	}
}
