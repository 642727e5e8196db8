package service

import (
	"math"
	"time"

	"github.com/habitlog/internal/db"
)

// DayStatus 表示某个习惯在某一天的打卡状态
type DayStatus struct {
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	Skipped   bool   `json:"skipped"`
}

// HabitSummary 汇总看板需要的整体数据
type HabitSummary struct {
	TotalHabits    int `json:"total_habits"`
	CompletedToday int `json:"completed_today"`
	TodayRate      int `json:"today_rate"`
	WindowDays     int `json:"window_days"`
	WindowRate     int `json:"window_rate"`
	BestStreak     int `json:"best_streak"`
}

// completionRate 统计最近 windowDays 天（含今天）的完成率百分比。
// 习惯只在创建当天及之后计入分母。
func completionRate(doc *db.Document, windowDays int, now time.Time) int {
	if windowDays <= 0 || len(doc.Habits) == 0 {
		return 0
	}

	today := normalizeToDate(now)
	possible, completed := 0, 0

	for i := 0; i < windowDays; i++ {
		day := today.AddDate(0, 0, -i)
		key := db.FormatDate(day)
		for _, habit := range doc.Habits {
			created := normalizeToDate(habit.CreatedAt.In(now.Location()))
			if day.Before(created) {
				continue
			}
			possible++
			if record, ok := doc.Record(key, habit.ID); ok && record.Completed {
				completed++
			}
		}
	}

	if possible == 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(possible)))
}

// habitHistory 返回截至今天的最近 days 天记录，按时间从旧到新排列
func habitHistory(doc *db.Document, habitID string, days int, now time.Time) []DayStatus {
	if days <= 0 {
		return []DayStatus{}
	}

	today := normalizeToDate(now)
	history := make([]DayStatus, 0, days)
	for i := days - 1; i >= 0; i-- {
		key := db.FormatDate(today.AddDate(0, 0, -i))
		status := DayStatus{Date: key}
		if record, ok := doc.Record(key, habitID); ok {
			status.Completed = record.Completed
			status.Skipped = record.Skipped
		}
		history = append(history, status)
	}
	return history
}

func countCompleted(history []DayStatus) int {
	count := 0
	for _, day := range history {
		if day.Completed {
			count++
		}
	}
	return count
}

func bestStreakOf(habits []db.Habit) int {
	best := 0
	for _, habit := range habits {
		if habit.BestStreak > best {
			best = habit.BestStreak
		}
	}
	return best
}
