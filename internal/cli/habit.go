package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/service"
	"github.com/spf13/cobra"
)

// exactArgs 与 cobra.ExactArgs 相同，但返回命令错误退出码
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "invalid arguments", err)
		}
		return nil
	}
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new habit",
		Long: `Add a new habit.

Categories: health, productivity, learning, social, other.
Unknown categories are stored as "other".

Example:
  habitctl add "Morning run" --category health`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(func(store *service.HabitStore) error {
				habit, err := store.AddHabit(service.HabitInput{Name: args[0], Category: category})
				if err != nil {
					return habitError(err, "")
				}
				return rootOpts.formatter(cmd).Emit(habit, func(w io.Writer) {
					fmt.Fprintf(w, "Added %s (%s) %s\n", titleStyle.Render(habit.Name), habit.Category, dimStyle.Render(habit.ID))
				})
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", string(db.CategoryOther), "habit category")
	return cmd
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List habits with their streaks",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(func(store *service.HabitStore) error {
				habits := store.GetHabits()
				today := store.GetTodayCompletions()
				return rootOpts.formatter(cmd).Emit(habits, func(w io.Writer) {
					if len(habits) == 0 {
						fmt.Fprintln(w, "No habits yet. Add one with: habitctl add <name>")
						return
					}
					rows := make([][]string, 0, len(habits))
					for _, habit := range habits {
						rows = append(rows, []string{
							habit.ID,
							habit.Name,
							string(habit.Category),
							strconv.Itoa(habit.Streak),
							strconv.Itoa(habit.BestStreak),
							strconv.Itoa(habit.TotalCompletions),
							todayMark(today[habit.ID]),
						})
					}
					fmt.Fprintln(w, renderTable([]string{"ID", "NAME", "CATEGORY", "STREAK", "BEST", "TOTAL", "TODAY"}, rows))
				})
			})
		},
	}
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	return newMarkCommand(rootOpts, "complete", "Mark a habit as completed", (*service.HabitStore).MarkHabitComplete)
}

// NewSkipCommand creates the skip command.
func NewSkipCommand(rootOpts *RootOptions) *cobra.Command {
	return newMarkCommand(rootOpts, "skip", "Mark a habit as skipped, resetting its streak", (*service.HabitStore).MarkHabitSkipped)
}

type markFunc func(store *service.HabitStore, id string, date time.Time) (*db.Habit, error)

func newMarkCommand(rootOpts *RootOptions, name, short string, mark markFunc) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   name + " <habit-id>",
		Short: short,
		Long: short + `.

Without --date the current day is used.

Example:
  habitctl ` + name + ` 3f1c... --date 2024-05-09`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			return rootOpts.withStore(func(store *service.HabitStore) error {
				habit, err := mark(store, args[0], day)
				if err != nil {
					return habitError(err, args[0])
				}
				return rootOpts.formatter(cmd).Emit(habit, func(w io.Writer) {
					fmt.Fprintf(w, "%s: streak %d (best %d, total %d)\n",
						titleStyle.Render(habit.Name), habit.Streak, habit.BestStreak, habit.TotalCompletions)
				})
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "day to record (YYYY-MM-DD)")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <habit-id>",
		Short: "Delete a habit and all of its records",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(func(store *service.HabitStore) error {
				if err := store.DeleteHabit(args[0]); err != nil {
					return habitError(err, args[0])
				}
				return rootOpts.formatter(cmd).Emit(map[string]any{"deleted": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted %s\n", args[0])
				})
			})
		},
	}
}

func parseDateFlag(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	day, err := time.ParseInLocation(db.DateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, WrapExitError(ExitCommandError, "invalid --date, expected YYYY-MM-DD", err)
	}
	return day, nil
}

func habitError(err error, id string) error {
	switch {
	case errors.Is(err, service.ErrHabitNotFound):
		return NewExitError(ExitFailure, fmt.Sprintf("habit not found: %s", id))
	case errors.Is(err, service.ErrHabitNameRequired), errors.Is(err, service.ErrHabitNameTooLong):
		return WrapExitError(ExitCommandError, "invalid habit name", err)
	case errors.Is(err, service.ErrFutureDate):
		return WrapExitError(ExitCommandError, "invalid --date", err)
	default:
		return WrapExitError(ExitFailure, "operation failed", err)
	}
}

func todayMark(record db.CompletionRecord) string {
	switch {
	case record.Completed:
		return "done"
	case record.Skipped:
		return "skipped"
	default:
		return "-"
	}
}
