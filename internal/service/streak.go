package service

import (
	"time"

	"github.com/habitlog/internal/db"
)

// graceDays 内（今天、昨天）未打卡不视为断签，用户可能只是还没记录
const graceDays = 1

// computeStreak 从 asOf 开始逐日向前回溯，统计连续完成天数。
// 遇到跳过记录立即停止；无记录的日期若早于创建日或超出宽限期则视为断签。
func computeStreak(doc *db.Document, habit db.Habit, asOf, now time.Time) int {
	loc := now.Location()
	day := normalizeToDate(asOf.In(loc))
	today := normalizeToDate(now)
	created := normalizeToDate(habit.CreatedAt.In(loc))

	streak := 0
	for {
		record, ok := doc.Record(db.FormatDate(day), habit.ID)
		switch {
		case ok && record.Completed:
			streak++
		case ok && record.Skipped:
			return streak
		default:
			if day.Before(created) {
				return streak
			}
			if daysBetween(day, today) > graceDays {
				return streak
			}
		}
		day = day.AddDate(0, 0, -1)
	}
}

// currentStreak 返回读取时的有效连胜。
// 超出宽限期没有打卡时链条已断，结果不会高于最近一次事件记下的值
func currentStreak(doc *db.Document, habit db.Habit, now time.Time) int {
	if habit.Streak == 0 {
		return 0
	}
	return min(habit.Streak, computeStreak(doc, habit, now, now))
}

// streakAnchor 返回计算连胜的基准日：事件日期与最近完成日中较晚的一个，
// 这样补记较早的日期也能接上当前的连胜
func streakAnchor(habit db.Habit, eventDate time.Time) time.Time {
	if habit.LastCompleted == nil {
		return eventDate
	}
	last, err := time.ParseInLocation(db.DateLayout, *habit.LastCompleted, eventDate.Location())
	if err != nil || !last.After(eventDate) {
		return eventDate
	}
	return last
}

func normalizeToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysBetween 返回 from 到 to 之间相差的日历天数，与夏令时无关
func daysBetween(from, to time.Time) int {
	return dayNumber(to) - dayNumber(from)
}

func dayNumber(t time.Time) int {
	return int(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
