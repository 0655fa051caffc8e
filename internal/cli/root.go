// Package cli defines the selloriy command tree: the long-running serve
// command plus the offline maintenance commands that work directly against
// the store.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/selloriy/selloriy/internal/config"
	"github.com/selloriy/selloriy/internal/infra/sqlite"
	"github.com/selloriy/selloriy/pkg/logger"
)

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "selloriy.toml", "Path to the TOML config file")
}

var rootCmd = &cobra.Command{
	Use:   "selloriy",
	Short: "Referral rewards bot and points ledger",
	Long: `Selloriy keeps a points ledger behind a Telegram bot: referral
tracking over two levels, admin point grants, and a redemption workflow
for the service catalog. Balances are never stored — every read is
re-derived from the recorded events.`,
	SilenceUsage: true,
}

// Execute runs the command tree. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and initializes logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured database. Migrations run on open.
func openStore(cfg *config.Config) (*sqlite.Store, error) {
	store, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", cfg.Storage.Path, err)
	}
	return store, nil
}
