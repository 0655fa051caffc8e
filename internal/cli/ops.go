package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/selloriy/selloriy/internal/app/ledger"
	"github.com/selloriy/selloriy/internal/export"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statsCmd)

	exportCmd.Flags().StringP("out", "o", "", "Output file (default users-<date>-<id>.xlsx)")
}

// ─── migrate ────────────────────────────────────────────────────────────────

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations and exit",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Open runs the migrations; this command exists so deploys can
	// migrate explicitly before starting serve.
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	version, err := store.SchemaVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Schema is at version %d\n", version)
	return nil
}

// ─── export ─────────────────────────────────────────────────────────────────

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the users workbook to an xlsx file",
	RunE:  runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	users, err := store.AllUsers()
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = export.SnapshotName()
	}
	if err := export.SaveUsers(out, users); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Wrote %d user(s) to %s\n", len(users), out)
	return nil
}

// ─── stats ──────────────────────────────────────────────────────────────────

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print ledger counters",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	led := ledger.New(store, cfg.Ledger.BonusRate, cfg.Ledger.RetentionDays)
	stats, err := led.Stats()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Users\t%d\n", stats.Users)
	fmt.Fprintf(w, "Pending requests\t%d\n", stats.Pending)
	fmt.Fprintf(w, "Approved requests\t%d\n", stats.Approved)
	return w.Flush()
}
