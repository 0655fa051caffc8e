package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/selloriy/selloriy/internal/api"
	"github.com/selloriy/selloriy/internal/app/ledger"
	"github.com/selloriy/selloriy/internal/app/redeem"
	"github.com/selloriy/selloriy/internal/bot"
	"github.com/selloriy/selloriy/pkg/logger"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot and the admin API",
	Long: `Start the bot long-polling loop and the admin HTTP API, and keep
both running until SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	led := ledger.New(store, cfg.Ledger.BonusRate, cfg.Ledger.RetentionDays)
	red := redeem.New(store, led, cfg.Services)

	tgBot, err := bot.New(cfg, led, red)
	if err != nil {
		return err
	}

	srv := api.NewServer(led, red, cfg.API.Token)
	if cfg.API.MetricsEnabled {
		srv.EnableMetrics()
	}
	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("admin api listening", logger.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go tgBot.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Log.Info("shutting down", logger.String("signal", sig.String()))
	case err := <-errCh:
		logger.Log.Error("admin api failed", logger.Error(err))
	}

	tgBot.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Log.Error("api shutdown", logger.Error(err))
	}
	return nil
}
