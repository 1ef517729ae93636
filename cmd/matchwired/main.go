package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matchwire/matchwire/internal/config"
	"github.com/matchwire/matchwire/internal/registry"
	"github.com/matchwire/matchwire/internal/server"
	"github.com/matchwire/matchwire/internal/store"
	"github.com/matchwire/matchwire/internal/sweep"
	"github.com/matchwire/matchwire/internal/version"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "matchwired",
		Short:         "Matchwire relay daemon - persists and fans out live match state",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(configPath)
		},
	}
	rootCmd.Version = version.String()
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	rootCmd.Flags().StringVar(&configPath, "config", config.ServerConfigPath(), "path to the server config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runDaemon(configPath string) error {
	if err := setupLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logging: %v\n", err)
	}

	cfg, err := config.LoadServer(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sweeper := sweep.New(st, cfg.SweepInterval.Std(), cfg.SweepMaxAge.Std())
	sweeper.Start()
	defer sweeper.Stop()

	srv := server.New(st, registry.New(st), cfg.APIKeyHash)
	log.Printf("Matchwired started (PID: %d)", os.Getpid())
	if err := srv.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
		return err
	}

	log.Println("Daemon stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.ServerConfig) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Printf("[Store] No database configured, using in-memory store")
		return store.NewMemory(), nil
	}
	st, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	log.Printf("[Store] Connected to postgres")
	return st, nil
}

func setupLogging() error {
	home, err := config.Home()
	if err != nil {
		return fmt.Errorf("locate data directory: %w", err)
	}

	logsDir := filepath.Join(home, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}

	logPath := filepath.Join(logsDir, "matchwired.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	log.SetOutput(io.MultiWriter(os.Stdout, logFile))
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	log.Printf("=== Matchwired Starting (PID: %d) ===", os.Getpid())
	log.Printf("Log file: %s", logPath)
	return nil
}
