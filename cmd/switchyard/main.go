package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/switchyard-project/switchyard/internal/api"
	"github.com/switchyard-project/switchyard/internal/backup"
	"github.com/switchyard-project/switchyard/internal/config"
	"github.com/switchyard-project/switchyard/internal/events"
	"github.com/switchyard-project/switchyard/internal/logging"
	"github.com/switchyard-project/switchyard/internal/profiles"
	"github.com/switchyard-project/switchyard/internal/skills"
	"github.com/switchyard-project/switchyard/internal/store"
	"github.com/switchyard-project/switchyard/internal/sysopen"
	"github.com/switchyard-project/switchyard/internal/tray"
	"github.com/switchyard-project/switchyard/internal/websocket"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "switchyard",
	Short:   "Switchyard - config profile manager for AI coding tools",
	Long:    `Switchyard keeps named configuration profiles for external AI CLI tools and switches the live config files between them from a tray menu, a browser window, or the command line`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Switchyard %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer() {
	// Baseline logger for early startup logs; re-initialized once the
	// configuration is loaded.
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "info",
		Component: "switchyard",
	})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "switchyard",
		FilePath:  cfg.LogFile,
	})
	defer logging.Shutdown()

	log.Info().Str("version", Version).Str("dataDir", cfg.DataDir).Msg("Starting Switchyard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(filepath.Join(cfg.DataDir, store.FileName))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open settings store")
	}
	defer db.Close()

	notifier := events.NewNotifier()
	defer notifier.Close()

	profileManager := profiles.NewManager(db, notifier)
	skillManager := skills.NewManager(db, notifier)
	backupService := backup.NewService(profileManager, skillManager, notifier)

	// First-run import of config files the tools already have on disk.
	profileManager.ImportLegacy(ctx)

	// External mutations (one-shot CLI runs, another instance) land in the
	// same store file; the watcher turns them into change events.
	watcher, err := store.NewWatcher(db, func() {
		notifier.Broadcast("", events.OriginExternal)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create store watcher; external changes need a restart")
	} else {
		if err := watcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start store watcher")
		}
		defer watcher.Stop()
	}

	wsHub := websocket.NewHub()
	defer wsHub.Stop()

	router := api.NewRouter(cfg, profileManager, skillManager, backupService, wsHub, Version)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wsHub.Run()
		return nil
	})
	g.Go(func() error {
		wsHub.Relay(gctx, notifier)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.Listen).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	uiURL := "http://" + cfg.Listen
	if cfg.OpenBrowser {
		if err := sysopen.OpenURL(uiURL); err != nil {
			log.Warn().Err(err).Msg("Failed to open browser")
		}
	}

	if cfg.TrayEnabled {
		runTray(ctx, gctx, cfg, profileManager, notifier, uiURL)
	} else {
		waitForShutdown(gctx)
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	cancel()
	wsHub.Stop()

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Service exited with error")
	}
	log.Info().Msg("Server stopped")
}

// runTray blocks in the host tray loop until Quit. The loop must own the
// main goroutine; macOS delivers menu callbacks only there.
func runTray(ctx, gctx context.Context, cfg *config.Config, manager *profiles.Manager, notifier *events.Notifier, uiURL string) {
	var controller *tray.Controller
	host := tray.NewSystray(func(id string) {
		controller.HandleClick(ctx, id)
	})
	builder := tray.NewBuilder(manager, cfg.HiddenProfiles)
	controller = tray.NewController(builder, manager, notifier, host, func() error {
		return sysopen.OpenURL(uiURL)
	}, host.Quit)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			log.Info().Msg("Received shutdown signal")
		case <-gctx.Done():
		}
		host.Quit()
	}()

	host.Run(func() {
		go controller.Run(ctx)
	}, func() {
		log.Debug().Msg("Tray loop exited")
	})
}

// waitForShutdown blocks until a shutdown signal arrives or a background
// worker fails.
func waitForShutdown(gctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		log.Info().Msg("Received shutdown signal")
	case <-gctx.Done():
	}
}
