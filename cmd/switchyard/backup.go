package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/switchyard-project/switchyard/internal/backup"
	"github.com/switchyard-project/switchyard/internal/events"
	"github.com/switchyard-project/switchyard/internal/profiles"
	"github.com/switchyard-project/switchyard/internal/skills"
)

var (
	exportFile      string
	importFile      string
	passphraseFlag  string
	includePatterns []string
	forceImport     bool
)

const maxBackupImportBytes int64 = 16 << 20 // 16 MiB

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all profiles as an encrypted bundle",
	Example: `  # Export with interactive passphrase prompt
  switchyard export -o switchyard-backup.enc

  # Export only matching profile ids
  switchyard export -o work.enc --include 'work-*'

  # Export with passphrase from environment variable
  SWITCHYARD_PASSPHRASE=mysecret switchyard export -o switchyard-backup.enc`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pass := getPassphrase("Enter passphrase for encryption: ", true)
		if pass == "" {
			return fmt.Errorf("passphrase is required")
		}

		_, db, err := setupCLI()
		if err != nil {
			return err
		}
		defer db.Close()

		notifier := events.NewNotifier()
		defer notifier.Close()
		service := backup.NewService(profiles.NewManager(db, notifier), skills.NewManager(db, notifier), notifier)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		data, err := service.Export(ctx, pass, includePatterns)
		if err != nil {
			return fmt.Errorf("failed to export profiles: %w", err)
		}

		if exportFile != "" {
			if err := os.WriteFile(exportFile, []byte(data), 0600); err != nil {
				return fmt.Errorf("failed to write export file: %w", err)
			}
			fmt.Printf("Profiles exported to %s\n", exportFile)
		} else {
			fmt.Println(data)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import profiles from an encrypted bundle",
	Example: `  # Import with interactive passphrase prompt
  switchyard import -i switchyard-backup.enc

  # Force import without confirmation
  switchyard import -i switchyard-backup.enc --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if importFile == "" {
			return fmt.Errorf("import file is required (use -i flag)")
		}

		data, err := readBoundedRegularFile(importFile, maxBackupImportBytes)
		if err != nil {
			return fmt.Errorf("failed to read import file: %w", err)
		}

		pass := getPassphrase("Enter passphrase for decryption: ", false)
		if pass == "" {
			return fmt.Errorf("passphrase is required")
		}

		if !forceImport {
			fmt.Println("WARNING: matching profiles will be overwritten!")
			fmt.Print("Continue? (yes/no): ")
			reader := bufio.NewReader(os.Stdin)
			response, _ := reader.ReadString('\n')
			response = strings.TrimSpace(strings.ToLower(response))
			if response != "yes" && response != "y" {
				fmt.Println("Import cancelled")
				return nil
			}
		}

		_, db, err := setupCLI()
		if err != nil {
			return err
		}
		defer db.Close()

		notifier := events.NewNotifier()
		defer notifier.Close()
		service := backup.NewService(profiles.NewManager(db, notifier), skills.NewManager(db, notifier), notifier)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := service.Import(ctx, strings.TrimSpace(string(data)), pass, events.OriginCLI); err != nil {
			return fmt.Errorf("failed to import profiles: %w", err)
		}

		fmt.Println("Profiles imported successfully")
		return nil
	},
}

var readPassword = term.ReadPassword

func readBoundedRegularFile(path string, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("invalid max bytes %d", maxBytes)
	}

	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("path is not a regular file")
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", maxBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", maxBytes)
	}

	return data, nil
}

func getPassphrase(prompt string, confirm bool) string {
	// Check environment variable first
	if pass := os.Getenv("SWITCHYARD_PASSPHRASE"); pass != "" {
		return pass
	}

	if passphraseFlag != "" {
		return passphraseFlag
	}

	// Interactive prompt
	fmt.Print(prompt)
	bytePassword, err := readPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return ""
	}

	pass := string(bytePassword)

	if confirm {
		fmt.Print("Confirm passphrase: ")
		bytePassword2, err := readPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return ""
		}
		if string(bytePassword2) != pass {
			fmt.Println("Passphrases do not match")
			return ""
		}
	}

	return pass
}

func init() {
	exportCmd.Flags().StringVarP(&exportFile, "output", "o", "", "Output file for the encrypted bundle")
	exportCmd.Flags().StringVarP(&passphraseFlag, "passphrase", "p", "", "Passphrase for encryption (or use SWITCHYARD_PASSPHRASE env var)")
	exportCmd.Flags().StringSliceVar(&includePatterns, "include", nil, "Wildcard patterns of profile ids to include (default all)")

	importCmd.Flags().StringVarP(&importFile, "input", "i", "", "Input file with the encrypted bundle")
	importCmd.Flags().StringVarP(&passphraseFlag, "passphrase", "p", "", "Passphrase for decryption (or use SWITCHYARD_PASSPHRASE env var)")
	importCmd.Flags().BoolVarP(&forceImport, "force", "f", false, "Force import without confirmation")
}
