package cli

import (
	"fmt"
	"io"

	"github.com/habitlog/internal/locale"
	"github.com/habitlog/internal/service"
	"github.com/spf13/cobra"
)

// NewInsightsCommand creates the insights command.
func NewInsightsCommand(rootOpts *RootOptions) *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Show up to five personalized insights",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			language, err := parseLanguageFlag(lang)
			if err != nil {
				return err
			}
			return rootOpts.withStore(func(store *service.HabitStore) error {
				insights := service.NewInsightService(store).GenerateInsights(language)
				return rootOpts.formatter(cmd).Emit(insights, func(w io.Writer) {
					for _, insight := range insights {
						fmt.Fprintf(w, "%s %s\n   %s\n", insight.Type.Icon(), titleStyle.Render(insight.Title), insight.Message)
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&lang, "lang", locale.Default, "insight language (en|zh)")
	return cmd
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show today's progress and the completion rate over a window",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return NewExitError(ExitCommandError, "--days must be at least 1")
			}
			return rootOpts.withStore(func(store *service.HabitStore) error {
				summary := store.Summary(days)
				return rootOpts.formatter(cmd).Emit(summary, func(w io.Writer) {
					fmt.Fprintf(w, "Habits:           %d\n", summary.TotalHabits)
					fmt.Fprintf(w, "Completed today:  %d (%d%%)\n", summary.CompletedToday, summary.TodayRate)
					fmt.Fprintf(w, "Window rate:      %d%% (last %d days)\n", summary.WindowRate, summary.WindowDays)
					fmt.Fprintf(w, "Best streak:      %d\n", summary.BestStreak)
				})
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "window size in days")
	return cmd
}

type difficultyResult struct {
	HabitID           string `json:"habit_id"`
	Name              string `json:"name"`
	Difficulty        int    `json:"difficulty"`
	SuccessLikelihood int    `json:"success_likelihood"`
	OptimalTime       string `json:"optimal_time"`
}

// NewDifficultyCommand creates the difficulty command.
func NewDifficultyCommand(rootOpts *RootOptions) *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "difficulty <habit-id>",
		Short: "Estimate how hard a habit is and when to do it",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			language, err := parseLanguageFlag(lang)
			if err != nil {
				return err
			}
			return rootOpts.withStore(func(store *service.HabitStore) error {
				id := args[0]
				habit, ok := store.GetHabit(id)
				if !ok {
					return NewExitError(ExitFailure, fmt.Sprintf("habit not found: %s", id))
				}

				insights := service.NewInsightService(store)
				result := difficultyResult{HabitID: id, Name: habit.Name}
				result.Difficulty, _ = insights.CalculateHabitDifficulty(id)
				result.SuccessLikelihood, _ = insights.SuccessLikelihood(id)
				result.OptimalTime, _ = insights.PredictOptimalTime(language, id)

				return rootOpts.formatter(cmd).Emit(result, func(w io.Writer) {
					fmt.Fprintln(w, titleStyle.Render(result.Name))
					fmt.Fprintf(w, "Difficulty:          %d/100\n", result.Difficulty)
					fmt.Fprintf(w, "Success likelihood:  %d%%\n", result.SuccessLikelihood)
					fmt.Fprintf(w, "Optimal time:        %s\n", result.OptimalTime)
				})
			})
		},
	}

	cmd.Flags().StringVar(&lang, "lang", locale.Default, "language for the time recommendation (en|zh)")
	return cmd
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		lang string
		html bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a markdown (or HTML) habit report",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			language, err := parseLanguageFlag(lang)
			if err != nil {
				return err
			}
			return rootOpts.withStore(func(store *service.HabitStore) error {
				reports := service.NewReportService(store, service.NewInsightService(store))
				body := reports.Markdown(language)
				if html {
					rendered, err := reports.HTML(language)
					if err != nil {
						return WrapExitError(ExitFailure, "render report", err)
					}
					body = rendered
				}
				return rootOpts.formatter(cmd).Emit(map[string]string{"report": body}, func(w io.Writer) {
					fmt.Fprint(w, body)
				})
			})
		},
	}

	cmd.Flags().StringVar(&lang, "lang", locale.Default, "report language (en|zh)")
	cmd.Flags().BoolVar(&html, "html", false, "render the report as sanitized HTML")
	return cmd
}

func parseLanguageFlag(value string) (string, error) {
	language := locale.NormalizeLanguage(value)
	if language == "" {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("unsupported language %q: use en or zh", value))
	}
	return language, nil
}
