package service

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/locale"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// ReportService 生成习惯概览报告
type ReportService struct {
	store     *HabitStore
	insights  *InsightService
	markdown  goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// NewReportService 构造 ReportService
func NewReportService(store *HabitStore, insights *InsightService) *ReportService {
	return &ReportService{
		store:    store,
		insights: insights,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Table),
			goldmark.WithRendererOptions(html.WithXHTML()),
		),
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// Markdown 输出 markdown 格式的报告
func (s *ReportService) Markdown(lang string) string {
	now := s.store.Now()
	summary := s.store.Summary(7)
	habits := s.store.GetHabits()

	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s\n\n", locale.Pick(lang, "Habit report", "习惯报告"), db.FormatDate(now))

	fmt.Fprintf(&b, "- %s: %d\n", locale.Pick(lang, "Habits", "习惯数"), summary.TotalHabits)
	fmt.Fprintf(&b, "- %s: %d (%d%%)\n", locale.Pick(lang, "Completed today", "今日完成"), summary.CompletedToday, summary.TodayRate)
	fmt.Fprintf(&b, "- %s: %d%%\n", locale.Pick(lang, "7-day completion rate", "近 7 天完成率"), summary.WindowRate)
	fmt.Fprintf(&b, "- %s: %d\n\n", locale.Pick(lang, "Best streak", "最佳连胜"), summary.BestStreak)

	if len(habits) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", locale.Pick(lang, "Habits", "习惯"))
		fmt.Fprintf(&b, "| %s |\n", strings.Join([]string{
			locale.Pick(lang, "Name", "名称"),
			locale.Pick(lang, "Category", "类别"),
			locale.Pick(lang, "Streak", "连胜"),
			locale.Pick(lang, "Best", "最佳"),
			locale.Pick(lang, "Total", "累计"),
			locale.Pick(lang, "Difficulty", "难度"),
			locale.Pick(lang, "Best time", "建议时段"),
		}, " | "))
		b.WriteString("| --- | --- | ---: | ---: | ---: | ---: | --- |\n")
		for _, habit := range habits {
			difficulty := habitDifficulty(habit, s.store.GetHabitCompletions(habit.ID, difficultyHistory))
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %d%% | %s |\n",
				escapeTableCell(habit.Name),
				categoryLabel(lang, habit.Category),
				habit.Streak,
				habit.BestStreak,
				habit.TotalCompletions,
				difficulty,
				optimalTimeFor(lang, habit.Category),
			)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## %s\n\n", locale.Pick(lang, "Insights", "洞察"))
	for _, insight := range s.insights.GenerateInsights(lang) {
		fmt.Fprintf(&b, "- %s **%s**: %s\n", insight.Type.Icon(), insight.Title, insight.Message)
	}

	return b.String()
}

// HTML 将 markdown 报告渲染为经过清洗的 HTML
func (s *ReportService) HTML(lang string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(s.Markdown(lang)), &buf); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return s.sanitizer.Sanitize(buf.String()), nil
}

func escapeTableCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
