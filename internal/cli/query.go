package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/asyrjasalo/augent/pkg/commands"
)

func newListCmd(workspace *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List locked bundles and their installed artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner(*workspace)
			if err != nil {
				return err
			}
			infos, err := runner.List()
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Println("no bundles installed")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSOURCE\tREVISION\tFILES\tINSTALLED")
			for _, info := range infos {
				marker := ""
				if !info.Direct && info.Name != "workspace" {
					marker = " (dependency)"
				}
				fmt.Fprintf(w, "%s%s\t%s\t%s\t%d\t%d\n",
					info.Name, marker, info.Source, info.Revision, info.Files, info.Installed)
			}
			return w.Flush()
		},
	}
}

func newShowCmd(workspace *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <bundle>",
		Short: "Show one bundle's locked state and installed artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner(*workspace)
			if err != nil {
				return err
			}
			detail, err := runner.Show(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("name:     %s\n", detail.Bundle.Name)
			fmt.Printf("source:   %s\n", detail.Bundle.Source)
			fmt.Printf("revision: %s\n", detail.Bundle.Source.Revision)
			fmt.Printf("hash:     %s\n", detail.Bundle.Hash)
			if len(detail.Bundle.Deps) > 0 {
				fmt.Printf("deps:     %v\n", detail.Bundle.Deps)
			}
			fmt.Printf("provides %d file(s):\n", len(detail.Bundle.Files))
			for _, f := range detail.Bundle.Files {
				fmt.Printf("  %s\n", f)
			}
			if len(detail.Entries) > 0 {
				fmt.Printf("installed artifacts:\n")
				for _, e := range detail.Entries {
					fmt.Printf("  [%s] %s -> %s\n", e.Platform, e.Path, e.Output)
				}
			}
			return nil
		},
	}
}

func newAdoptCmd(workspace *string) *cobra.Command {
	var noWait bool

	cmd := &cobra.Command{
		Use:   "adopt",
		Short: "Migrate locally modified artifacts into the workspace bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner(*workspace)
			if err != nil {
				return err
			}
			result, err := runner.Adopt(cmd.Context(), commands.AdoptOptions{NoWait: noWait})
			if err != nil {
				return err
			}
			if len(result.Adopted) == 0 {
				fmt.Println("no modified artifacts found")
				return nil
			}
			for _, path := range result.Adopted {
				fmt.Printf("adopted %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Fail instead of waiting for the workspace lock")
	return cmd
}

func newCacheCmd(workspace *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Cache maintenance",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Remove every cached bundle snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner(*workspace)
			if err != nil {
				return err
			}
			return runner.Store().Clear()
		},
	})

	return cmd
}
