// Command syslua is the thin CLI shell over pkg/engine: it parses flags,
// resolves configuration via pkg/storepath, calls into the core, and
// renders the result with pkg/console. No engine decision lives here
// (§6.3: "the core does not parse flags").
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/syslua/syslua/pkg/action"
	"github.com/syslua/syslua/pkg/console"
	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/engine"
	"github.com/syslua/syslua/pkg/storepath"
)

var version = "dev"

func currentPlatform() constants.Platform {
	return constants.Platform(fmt.Sprintf("%s-%s", runtime.GOARCH, runtime.GOOS))
}

// newEngine resolves configuration and constructs an Engine for the
// invoking subcommand, tagging the store lock with the subcommand name.
func newEngine(command string) (*engine.Engine, storepath.Config, error) {
	cfg, err := storepath.Resolve()
	if err != nil {
		return nil, storepath.Config{}, err
	}
	executor := &action.Executor{InputsCacheDir: cfg.InputsCacheDir}
	e := engine.New(cfg.StoreRoot, cfg.ParentStore, executor, cfg.MaxWorkers, command)
	return e, cfg, nil
}

var rootCmd = &cobra.Command{
	Use:     "syslua",
	Short:   "Declarative system configuration: manifest, diff, apply, rollback",
	Version: version,
	Long: `syslua applies a declarative manifest of builds and binds against a
content-addressed store, computing the minimal diff and running it in
dependency-ordered waves, with atomic rollback on failure.

Common tasks:
  syslua apply config.toml        # realize a configuration
  syslua plan config.toml         # show what apply would do
  syslua status --verbose         # list snapshots
  syslua rollback                 # revert to the previous snapshot
  syslua gc --dry-run             # preview reclaimable store space`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(lockStatusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		os.Exit(exitCodeFor(err))
	}
}
