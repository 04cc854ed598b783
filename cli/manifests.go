package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/merlin-labs/merlin/manifest"
)

// NewManifestsCmd creates the "manifests" subcommand group.
func NewManifestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifests",
		Short: "List, export, import, and merge manifests",
	}
	cmd.AddCommand(newManifestsListCmd())
	cmd.AddCommand(newManifestsExportCmd())
	cmd.AddCommand(newManifestsImportCmd())
	cmd.AddCommand(newManifestsMergeCmd())
	return cmd
}

func newManifestsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored manifests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			summaries, err := a.store.List()
			if err != nil {
				return exitError(exitRuntime, "listing manifests: %v", err)
			}
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No manifests stored.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTOOLS\tUPDATED")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%d\t%s\n", s.Name, s.ToolCount, s.LastUpdated)
			}
			return w.Flush()
		},
	}
}

func newManifestsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Write a sanitized copy of a manifest for sharing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			m, err := a.loadManifest(cmd)
			if err != nil {
				return err
			}
			if err := manifest.Export(m, args[0], a.cfg.AIMLHome); err != nil {
				return exitError(exitFor(err), "exporting: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d tool(s) to %s\n", len(m.Tools), args[0])
			return nil
		},
	}
	cmd.Flags().String("manifest", "", "Manifest name (default: default)")
	return cmd
}

func newManifestsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Import an external manifest, re-homing paths to the local root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			policyFlag, _ := cmd.Flags().GetString("policy")
			policy, err := manifest.ParsePolicy(policyFlag)
			if err != nil {
				return exitError(exitValidation, "%v", err)
			}

			merged, collisions, err := a.store.Import(args[0], manifestName(cmd), a.cfg.AIMLHome, policy)
			if err != nil {
				return exitError(exitFor(err), "importing: %v", err)
			}
			for _, c := range collisions {
				if c.RenamedTo != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "collision: %s -> %s (%s)\n", c.Name, c.RenamedTo, c.Resolution)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "collision: %s (%s)\n", c.Name, c.Resolution)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Manifest %s now has %d tool(s)\n", manifestName(cmd), len(merged.Tools))
			return nil
		},
	}
	cmd.Flags().String("manifest", "", "Target manifest name (default: default)")
	cmd.Flags().String("policy", "skip", "Collision policy: replace, skip, or rename")
	return cmd
}

func newManifestsMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <incoming>",
		Short: "Merge a stored manifest into the target manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			policyFlag, _ := cmd.Flags().GetString("policy")
			policy, err := manifest.ParsePolicy(policyFlag)
			if err != nil {
				return exitError(exitValidation, "%v", err)
			}

			base, err := a.loadManifest(cmd)
			if err != nil {
				return err
			}
			incoming, err := a.store.Load(args[0])
			if err != nil {
				return exitError(exitFor(err), "loading manifest %q: %v", args[0], err)
			}

			merged, collisions, err := manifest.Merge(base, incoming, policy)
			if err != nil {
				return exitError(exitFor(err), "merging: %v", err)
			}
			if err := a.store.Save(manifestName(cmd), merged); err != nil {
				return exitError(exitRuntime, "saving manifest: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %s into %s: %d tool(s), %d collision(s)\n",
				args[0], manifestName(cmd), len(merged.Tools), len(collisions))
			return nil
		},
	}
	cmd.Flags().String("manifest", "", "Target manifest name (default: default)")
	cmd.Flags().String("policy", "skip", "Collision policy: replace, skip, or rename")
	return cmd
}
