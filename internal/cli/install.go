package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/asyrjasalo/augent/pkg/commands"
)

func newInstallCmd(workspace *string) *cobra.Command {
	var (
		frozen  bool
		dryRun  bool
		noWait  bool
		name    string
		subpath string
	)

	cmd := &cobra.Command{
		Use:   "install [source]",
		Short: "Resolve, lock, and install bundles into the workspace",
		Long: `Install resolves the manifest's bundles (plus an optional new source),
writes the lockfile, and installs artifacts for every detected platform.
The whole operation is transactional: on any failure the workspace is
rolled back to its prior state.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner(*workspace)
			if err != nil {
				return err
			}

			opts := commands.InstallOptions{
				Frozen: frozen,
				DryRun: dryRun,
				NoWait: noWait,
			}

			if len(args) == 1 {
				decls, err := runner.Discover(args[0], subpath)
				if err != nil {
					return err
				}
				if name != "" {
					if len(decls) != 1 {
						return fmt.Errorf("--name requires exactly one bundle, found %d", len(decls))
					}
					decls[0].Name = name
				}
				opts.Add = decls
			} else if name != "" || subpath != "" {
				return fmt.Errorf("--name and --subpath require a source argument")
			}

			result, err := runner.Install(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if result.DryRun {
				fmt.Printf("would install %d bundle(s): %s\n",
					len(result.Bundles), strings.Join(result.Bundles, ", "))
				return nil
			}
			for _, path := range result.Adopted {
				fmt.Printf("adopted local edit: %s\n", path)
			}
			fmt.Printf("installed %d bundle(s) for platform(s) %s\n",
				len(result.Bundles), strings.Join(result.Platforms, ", "))
			return nil
		},
	}

	cmd.Flags().BoolVar(&frozen, "frozen", false, "Fail if the lockfile would change; write nothing")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve and report without changing the workspace")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Fail instead of waiting for the workspace lock")
	cmd.Flags().StringVar(&name, "name", "", "Override the discovered bundle name")
	cmd.Flags().StringVar(&subpath, "subpath", "", "Install the bundle at this subpath of the source")

	return cmd
}

func newUninstallCmd(workspace *string) *cobra.Command {
	var (
		keep   bool
		noWait bool
	)

	cmd := &cobra.Command{
		Use:   "uninstall <bundle>...",
		Short: "Remove bundles and their no-longer-needed dependencies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner(*workspace)
			if err != nil {
				return err
			}
			result, err := runner.Uninstall(cmd.Context(), commands.UninstallOptions{
				Bundles: args,
				Keep:    keep,
				NoWait:  noWait,
			})
			if err != nil {
				return err
			}
			for _, path := range result.Adopted {
				fmt.Printf("adopted local edit: %s\n", path)
			}
			fmt.Printf("removed %s; %d bundle(s) remain\n",
				strings.Join(result.Removed, ", "), len(result.Remaining))
			return nil
		},
	}

	cmd.Flags().BoolVar(&keep, "keep", false, "Keep the removed bundles' dependencies as direct declarations")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Fail instead of waiting for the workspace lock")

	return cmd
}
