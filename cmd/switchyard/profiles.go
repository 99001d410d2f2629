package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/switchyard-project/switchyard/internal/config"
	"github.com/switchyard-project/switchyard/internal/events"
	"github.com/switchyard-project/switchyard/internal/logging"
	"github.com/switchyard-project/switchyard/internal/profiles"
	"github.com/switchyard-project/switchyard/internal/store"
)

// setupCLI prepares a one-shot command: quiet console logging, loaded
// configuration, and the shared store file. The running service notices the
// resulting writes through its store watcher.
func setupCLI() (*config.Config, *store.Store, error) {
	logging.Init(logging.Config{
		Format:    "console",
		Level:     "warn",
		Component: "switchyard",
	})

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := store.Open(filepath.Join(cfg.DataDir, store.FileName))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open settings store: %w", err)
	}
	return cfg, db, nil
}

func familyNames() string {
	names := make([]string, 0, 2)
	for _, family := range profiles.Families() {
		names = append(names, family.Name)
	}
	return strings.Join(names, ", ")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles for every tool family",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := setupCLI()
		if err != nil {
			return err
		}
		defer db.Close()

		notifier := events.NewNotifier()
		defer notifier.Close()
		manager := profiles.NewManager(db, notifier)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		for _, family := range profiles.Families() {
			fmt.Println(text.Bold.Sprint(family.Label))

			list := manager.List(ctx, family)
			if len(list) == 0 {
				fmt.Printf("  %s\n\n", text.FgYellow.Sprint("no profiles"))
				continue
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"ID", "NAME", "CATEGORY", "APPLIED", "UPDATED"})
			for _, profile := range list {
				applied := ""
				if profile.Applied {
					applied = text.FgGreen.Sprint("yes")
				}
				t.AppendRow(table.Row{profile.ID, profile.Name, profile.Category, applied, profile.UpdatedAt})
			}
			t.Render()
			fmt.Println()
		}
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply FAMILY ID",
	Short: "Apply a profile, rewriting the tool's live config files",
	Example: `  # Switch the codex CLI to the "work" profile
  switchyard apply codex work`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		family, ok := profiles.FamilyByName(args[0])
		if !ok {
			return fmt.Errorf("unknown family %q (expected one of: %s)", args[0], familyNames())
		}

		_, db, err := setupCLI()
		if err != nil {
			return err
		}
		defer db.Close()

		notifier := events.NewNotifier()
		defer notifier.Close()
		manager := profiles.NewManager(db, notifier)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := manager.Apply(ctx, family, args[1], events.OriginCLI); err != nil {
			return fmt.Errorf("failed to apply %s/%s: %w", family.Name, args[1], err)
		}

		fmt.Printf("Applied %s/%s\n", family.Name, args[1])
		return nil
	},
}
