// Package cli implements the weft command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/boltstore"
	"github.com/weftworks/weft/internal/config"
	"github.com/weftworks/weft/internal/engine"
	"github.com/weftworks/weft/internal/sqlstore"
	"github.com/weftworks/weft/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Weft manages localized content with git-like branches",
	Long: `Weft organizes localized text into projects, spaces, branches, keys and
per-language translations. Branches are copy-on-write snapshots that can be
forked, diffed three-way against their fork point, and merged back with
conflict resolution.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectCreateCmd, projectListCmd)

	rootCmd.AddCommand(spaceCmd)
	spaceCmd.AddCommand(spaceCreateCmd, spaceListCmd)

	rootCmd.AddCommand(branchCmd)
	branchCmd.AddCommand(branchCreateCmd, branchListCmd, branchRemoveCmd)

	rootCmd.AddCommand(forkCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(mergeCmd)

	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyAddCmd, keyRemoveCmd)
	rootCmd.AddCommand(trCmd)
	trCmd.AddCommand(trSetCmd)

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(fingerprintCmd)

	rootCmd.AddCommand(serveCmd)
}

// openStore opens the configured storage backend.
func openStore() (store.Store, *config.Config, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	var s store.Store
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		s, err = sqlstore.Open(cfg.Store.PostgresDSN)
	default:
		s, err = boltstore.Open(cfg.Store.BoltPath)
	}
	if err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}

// openEngine opens the store and builds the engine around it. Callers must
// Close the returned store.
func openEngine() (*engine.Engine, store.Store, error) {
	s, _, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	return engine.New(s), s, nil
}

// requireArgs fails the command unless exactly n positional args were given.
func requireArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("expected %d argument(s): %s", n, usage)
		}
		return nil
	}
}
