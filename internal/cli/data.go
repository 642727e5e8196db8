package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/service"
	"github.com/spf13/cobra"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all habits and records as JSON",
		Long: `Export all habits and records as JSON.

Without --out the document is written to stdout. Use "-" for stdout explicitly
or "auto" to write habit-tracker-backup-YYYY-MM-DD.json in the current directory.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(func(store *service.HabitStore) error {
				raw, err := json.MarshalIndent(store.ExportData(), "", "  ")
				if err != nil {
					return WrapExitError(ExitFailure, "encode export", err)
				}
				raw = append(raw, '\n')

				target := out
				if target == "auto" {
					target = fmt.Sprintf("habit-tracker-backup-%s.json", db.FormatDate(store.Now()))
				}
				if target == "" || target == "-" {
					_, err := cmd.OutOrStdout().Write(raw)
					return err
				}

				if err := os.WriteFile(target, raw, 0o600); err != nil {
					return WrapExitError(ExitCommandError, "write export file", err)
				}
				return rootOpts.formatter(cmd).Emit(map[string]string{"file": target}, func(w io.Writer) {
					fmt.Fprintf(w, "Exported to %s\n", target)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (- for stdout, auto for a dated file name)")
	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace all data with a previously exported JSON document",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "read import file", err)
			}
			return rootOpts.withStore(func(store *service.HabitStore) error {
				if err := store.ImportData(raw); err != nil {
					if errors.Is(err, service.ErrInvalidImport) {
						return WrapExitError(ExitFailure, "import rejected", err)
					}
					return WrapExitError(ExitFailure, "import failed", err)
				}
				count := len(store.GetHabits())
				return rootOpts.formatter(cmd).Emit(map[string]int{"habits": count}, func(w io.Writer) {
					fmt.Fprintf(w, "Imported %d habit(s)\n", count)
				})
			})
		},
	}
}
