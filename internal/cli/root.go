package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/asyrjasalo/augent/internal/version"
	"github.com/asyrjasalo/augent/pkg/commands"
	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/filesystem"
	"github.com/asyrjasalo/augent/pkg/logging"
	"github.com/asyrjasalo/augent/pkg/paths"
)

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	var (
		verbosity int
		workspace string
	)

	rootCmd := &cobra.Command{
		Use:   "augent",
		Short: "A bundle manager for agent-tooling resources",
		Long: `augent resolves named bundles of agent-tooling resources, caches them
by exact revision, and installs platform-specific artifacts into your
workspace with full provenance tracking, so overrides, updates, and
removals stay safe.`,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current directory)")

	rootCmd.AddCommand(newInstallCmd(&workspace))
	rootCmd.AddCommand(newUninstallCmd(&workspace))
	rootCmd.AddCommand(newListCmd(&workspace))
	rootCmd.AddCommand(newShowCmd(&workspace))
	rootCmd.AddCommand(newAdoptCmd(&workspace))
	rootCmd.AddCommand(newCacheCmd(&workspace))

	return rootCmd
}

// Execute runs the root command and maps core errors to a non-zero
// process result with exactly one user-visible message.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "augent: %v\n", err)
		if errors.IsErrorCode(err, errors.ErrLockContention) {
			return 2
		}
		return 1
	}
	return 0
}

// newRunner builds the command runner for the chosen workspace.
func newRunner(workspaceFlag string) (*commands.Runner, error) {
	p, err := paths.New(workspaceFlag)
	if err != nil {
		return nil, err
	}
	return commands.NewRunner(filesystem.NewOS(), p, nil, nil)
}
