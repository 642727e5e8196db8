package service

import (
	"fmt"
	"math"
	"time"

	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/locale"
)

const (
	maxInsights         = 5
	maxPredictions      = 2
	predictionHistory   = 30
	difficultyHistory   = 30
	consistencyWindow   = 7
	habitFormationDays  = 21
	morningCutoffHour   = 10
	strugglingThreshold = 3
)

// InsightType 标识洞察的种类
type InsightType string

const (
	InsightWelcome       InsightType = "welcome"
	InsightSuccess       InsightType = "success"
	InsightImprovement   InsightType = "improvement"
	InsightMotivation    InsightType = "motivation"
	InsightAchievement   InsightType = "achievement"
	InsightEncouragement InsightType = "encouragement"
	InsightPattern       InsightType = "pattern"
	InsightPrediction    InsightType = "prediction"
	InsightWarning       InsightType = "warning"
	InsightTiming        InsightType = "timing"
	InsightStrategy      InsightType = "strategy"
	InsightAdjustment    InsightType = "adjustment"
)

var insightIcons = map[InsightType]string{
	InsightWelcome:       "👋",
	InsightSuccess:       "🎉",
	InsightImprovement:   "📈",
	InsightMotivation:    "💪",
	InsightAchievement:   "🏆",
	InsightEncouragement: "⚡",
	InsightPattern:       "🧠",
	InsightPrediction:    "🔮",
	InsightWarning:       "⚠️",
	InsightTiming:        "⏰",
	InsightStrategy:      "🎯",
	InsightAdjustment:    "🔧",
}

// Icon 返回用于展示的图标，未知类型回退为灯泡
func (t InsightType) Icon() string {
	if icon, ok := insightIcons[t]; ok {
		return icon
	}
	return "💡"
}

// Insight 是一条模板化的洞察，不做持久化
type Insight struct {
	Type    InsightType `json:"type"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
}

type insightTemplate struct {
	titleEN, titleZH     string
	messageEN, messageZH string
}

var insightTemplates = map[InsightType]insightTemplate{
	InsightWelcome: {
		titleEN:   "🎯 Welcome to Habit Insights!",
		titleZH:   "🎯 欢迎使用习惯洞察！",
		messageEN: "Start by adding your first habit. Once you log a few days, patterns and personalized suggestions will show up here.",
		messageZH: "先添加你的第一个习惯吧。记录几天之后，这里会出现基于你的打卡规律的建议。",
	},
	InsightSuccess: {
		titleEN:   "🔥 Excellent Progress!",
		titleZH:   "🔥 进展出色！",
		messageEN: "You're crushing it with a %d%% completion rate this week! This kind of consistency is what turns actions into habits.",
		messageZH: "本周完成率达到 %d%%，表现非常棒！这样的稳定性正是把行动变成习惯的关键。",
	},
	InsightImprovement: {
		titleEN:   "📈 Good Momentum",
		titleZH:   "📈 势头不错",
		messageEN: "A %d%% completion rate shows solid progress. Try the \"2-minute rule\": make habits so easy you can't say no.",
		messageZH: "%d%% 的完成率说明进展稳定。试试“两分钟法则”：让习惯简单到无法拒绝。",
	},
	InsightMotivation: {
		titleEN:   "💪 Let's Bounce Back",
		titleZH:   "💪 重新出发",
		messageEN: "A %d%% completion rate suggests you might be overcommitting. Consider focusing on 1-2 core habits first.",
		messageZH: "%d%% 的完成率说明目标可能定得太多了，先专注于 1-2 个核心习惯吧。",
	},
	InsightAchievement: {
		titleEN:   "🏆 Streak Master!",
		titleZH:   "🏆 连胜达人！",
		messageEN: "Your best streak of %d days shows you have the discipline to build lasting habits.",
		messageZH: "你的最佳连胜达到 %d 天，说明你完全有能力养成长期习惯。",
	},
	InsightEncouragement: {
		titleEN:   "⚡ Active Streaks Detected",
		titleZH:   "⚡ 连胜进行中",
		messageEN: "You have %d active streak(s) with an average of %d days. Keep the momentum going!",
		messageZH: "你有 %d 个习惯正在连胜，平均 %d 天，继续保持！",
	},
	InsightPattern: {
		titleEN:   "🎯 Category Champion",
		titleZH:   "🎯 优势类别",
		messageEN: "You excel at %s habits! Consider leveraging this strength when you add new ones.",
		messageZH: "你在「%s」类习惯上表现最好！添加新习惯时可以借助这份优势。",
	},
	InsightPrediction: {
		titleEN:   "🚀 High Success Probability",
		titleZH:   "🚀 成功概率很高",
		messageEN: "\"%s\" has a %d%% likelihood of becoming automatic based on your pattern. You're in the habit formation zone!",
		messageZH: "根据你的打卡规律，「%s」有 %d%% 的可能成为自动化习惯，你已经进入习惯养成区！",
	},
	InsightWarning: {
		titleEN:   "⚠️ Habit at Risk",
		titleZH:   "⚠️ 习惯有中断风险",
		messageEN: "\"%s\" shows a %d%% success likelihood. Consider simplifying it or changing the trigger or reward.",
		messageZH: "「%s」的成功概率只有 %d%%，考虑简化它，或者调整触发条件与奖励。",
	},
	InsightTiming: {
		titleEN:   "🌅 Morning Opportunity",
		titleZH:   "🌅 清晨好时机",
		messageEN: "Morning is prime time for habit formation and your willpower is strongest now. A perfect moment to tackle \"%s\".",
		messageZH: "早晨是养成习惯的黄金时间，此刻意志力最强，正适合完成「%s」。",
	},
	InsightStrategy: {
		titleEN:   "🔗 Habit Stacking Opportunity",
		titleZH:   "🔗 习惯叠加",
		messageEN: "You've completed some habits today! Try \"stacking\": do \"%s\" right after your next completed habit.",
		messageZH: "今天已经完成了部分习惯！试试“习惯叠加”：在下一个完成的习惯之后紧接着做「%s」。",
	},
	InsightAdjustment: {
		titleEN:   "🎯 Simplification Suggestion",
		titleZH:   "🎯 简化建议",
		messageEN: "\"%s\" might be too ambitious. Try the 1%% rule: make it 1%% easier until it becomes automatic.",
		messageZH: "「%s」可能有点难。试试 1%% 法则：每次让它简单 1%%，直到变成自动行为。",
	},
}

type categoryText struct {
	labelEN, labelZH string
	timeEN, timeZH   string
}

var categoryTexts = map[db.Category]categoryText{
	db.CategoryHealth: {
		labelEN: "health", labelZH: "健康",
		timeEN: "Morning (6-9 AM) when willpower is highest",
		timeZH: "早晨（6-9 点），意志力最强的时候",
	},
	db.CategoryProductivity: {
		labelEN: "productivity", labelZH: "效率",
		timeEN: "Morning (9-11 AM) during peak focus hours",
		timeZH: "上午（9-11 点），专注力的高峰期",
	},
	db.CategoryLearning: {
		labelEN: "learning", labelZH: "学习",
		timeEN: "Evening (7-9 PM) for better retention",
		timeZH: "晚上（19-21 点），更利于记忆巩固",
	},
	db.CategorySocial: {
		labelEN: "social", labelZH: "社交",
		timeEN: "Afternoon (2-5 PM) when energy is balanced",
		timeZH: "下午（14-17 点），精力较为均衡",
	},
	db.CategoryOther: {
		labelEN: "other", labelZH: "其他",
		timeEN: "Choose a consistent time that fits your schedule",
		timeZH: "选择一个适合自己日程的固定时间",
	},
}

// HabitReader 是洞察计算需要的只读数据源
type HabitReader interface {
	Now() time.Time
	GetHabits() []db.Habit
	GetHabit(id string) (db.Habit, bool)
	GetHabitCompletions(habitID string, days int) []DayStatus
	GetTodayCompletions() map[string]db.CompletionRecord
	GetCompletionRate(days int) int
}

// InsightService 基于固定权重的规则生成洞察，本身不持有可变状态
type InsightService struct {
	reader HabitReader
}

// NewInsightService 构造 InsightService
func NewInsightService(reader HabitReader) *InsightService {
	return &InsightService{reader: reader}
}

// GenerateInsights 按固定优先级生成洞察，最多返回 5 条
func (s *InsightService) GenerateInsights(lang string) []Insight {
	habits := s.reader.GetHabits()
	if len(habits) == 0 {
		return []Insight{newInsight(lang, InsightWelcome)}
	}

	var insights []Insight
	insights = append(insights, s.analyzeCompletionPatterns(lang)...)
	insights = append(insights, analyzeStreaks(lang, habits)...)
	insights = append(insights, analyzeCategoryPerformance(lang, habits)...)
	insights = append(insights, s.predictSuccessLikelihood(lang, habits)...)
	insights = append(insights, s.generateRecommendations(lang, habits)...)

	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}

// PredictOptimalTime 按类别返回建议的执行时段，习惯不存在时 ok 为 false
func (s *InsightService) PredictOptimalTime(lang, habitID string) (string, bool) {
	habit, ok := s.reader.GetHabit(habitID)
	if !ok {
		return "", false
	}
	return optimalTimeFor(lang, habit.Category), true
}

// CalculateHabitDifficulty 基于 30 天完成率与最佳连胜估算难度，结果限定在 [0,100]
func (s *InsightService) CalculateHabitDifficulty(habitID string) (int, bool) {
	habit, ok := s.reader.GetHabit(habitID)
	if !ok {
		return 0, false
	}
	history := s.reader.GetHabitCompletions(habitID, difficultyHistory)
	return habitDifficulty(habit, history), true
}

// SuccessLikelihood 返回习惯成为自动化行为的可能性百分比
func (s *InsightService) SuccessLikelihood(habitID string) (int, bool) {
	habit, ok := s.reader.GetHabit(habitID)
	if !ok {
		return 0, false
	}
	return successLikelihood(habit, s.reader.GetHabitCompletions(habitID, predictionHistory)), true
}

func (s *InsightService) analyzeCompletionPatterns(lang string) []Insight {
	rate := s.reader.GetCompletionRate(7)
	switch {
	case rate >= 80:
		return []Insight{newInsight(lang, InsightSuccess, rate)}
	case rate >= 60:
		return []Insight{newInsight(lang, InsightImprovement, rate)}
	case rate < 40:
		return []Insight{newInsight(lang, InsightMotivation, rate)}
	}
	return nil
}

func analyzeStreaks(lang string, habits []db.Habit) []Insight {
	var insights []Insight

	if best := bestStreakOf(habits); best >= 7 {
		insights = append(insights, newInsight(lang, InsightAchievement, best))
	}

	active, total := 0, 0
	for _, habit := range habits {
		if habit.Streak > 0 {
			active++
			total += habit.Streak
		}
	}
	if active > 0 {
		avg := int(math.Round(float64(total) / float64(active)))
		insights = append(insights, newInsight(lang, InsightEncouragement, active, avg))
	}

	return insights
}

// categoryGroups 按首次出现顺序记录各类别的统计，保证并列时结果稳定
type categoryGroups struct {
	order []db.Category
	stats map[db.Category]*categoryStat
}

type categoryStat struct {
	habits      int
	completions int
}

func (g *categoryGroups) add(habit db.Habit) {
	stat, ok := g.stats[habit.Category]
	if !ok {
		stat = &categoryStat{}
		g.stats[habit.Category] = stat
		g.order = append(g.order, habit.Category)
	}
	stat.habits++
	stat.completions += habit.TotalCompletions
}

func analyzeCategoryPerformance(lang string, habits []db.Habit) []Insight {
	if len(habits) < 2 {
		return nil
	}

	groups := categoryGroups{stats: map[db.Category]*categoryStat{}}
	for _, habit := range habits {
		groups.add(habit)
	}

	best := groups.order[0]
	bestAvg := groups.stats[best].average()
	for _, category := range groups.order[1:] {
		if avg := groups.stats[category].average(); avg > bestAvg {
			best, bestAvg = category, avg
		}
	}

	return []Insight{newInsight(lang, InsightPattern, categoryLabel(lang, best))}
}

func (c *categoryStat) average() float64 {
	if c.habits == 0 {
		return 0
	}
	return float64(c.completions) / float64(c.habits)
}

func (s *InsightService) predictSuccessLikelihood(lang string, habits []db.Habit) []Insight {
	var insights []Insight
	for _, habit := range habits {
		if len(insights) >= maxPredictions {
			break
		}
		likelihood := successLikelihood(habit, s.reader.GetHabitCompletions(habit.ID, predictionHistory))
		switch {
		case likelihood >= 80:
			insights = append(insights, newInsight(lang, InsightPrediction, habit.Name, likelihood))
		case likelihood <= 30 && habit.TotalCompletions > 5:
			insights = append(insights, newInsight(lang, InsightWarning, habit.Name, likelihood))
		}
	}
	return insights
}

func (s *InsightService) generateRecommendations(lang string, habits []db.Habit) []Insight {
	var insights []Insight
	today := s.reader.GetTodayCompletions()

	var pending []db.Habit
	completedToday := 0
	for _, habit := range habits {
		if today[habit.ID].Completed {
			completedToday++
		} else {
			pending = append(pending, habit)
		}
	}

	if s.reader.Now().Hour() < morningCutoffHour && len(pending) > 0 {
		insights = append(insights, newInsight(lang, InsightTiming, pending[0].Name))
	}

	if completedToday > 0 && len(pending) > 0 {
		insights = append(insights, newInsight(lang, InsightStrategy, pending[0].Name))
	}

	for _, habit := range habits {
		if countCompleted(s.reader.GetHabitCompletions(habit.ID, 7)) < strugglingThreshold {
			insights = append(insights, newInsight(lang, InsightAdjustment, habit.Name))
			break
		}
	}

	return insights
}

// successLikelihood = 0.4*近 7 天完成率 + 0.4*连胜因子 + 0.2*稳定性
func successLikelihood(habit db.Habit, history []DayStatus) int {
	recent := history
	if len(recent) > 7 {
		recent = recent[len(recent)-7:]
	}
	rate7 := float64(countCompleted(recent)) / 7
	streakFactor := math.Min(float64(habit.Streak)/habitFormationDays, 1)
	consistency := calculateConsistency(history)

	return int(math.Round(100 * (0.4*rate7 + 0.4*streakFactor + 0.2*consistency)))
}

// calculateConsistency 计算所有连续 7 天窗口完成率的方差，返回 max(0, 1-方差)
func calculateConsistency(history []DayStatus) float64 {
	if len(history) < consistencyWindow {
		return 0
	}

	windows := make([]float64, 0, len(history)-consistencyWindow+1)
	for i := 0; i+consistencyWindow <= len(history); i++ {
		windows = append(windows, float64(countCompleted(history[i:i+consistencyWindow]))/consistencyWindow)
	}

	var sum float64
	for _, rate := range windows {
		sum += rate
	}
	mean := sum / float64(len(windows))

	var variance float64
	for _, rate := range windows {
		variance += (rate - mean) * (rate - mean)
	}
	variance /= float64(len(windows))

	return math.Max(0, 1-variance)
}

func habitDifficulty(habit db.Habit, history []DayStatus) int {
	rate := 0.0
	if len(history) > 0 {
		rate = float64(countCompleted(history)) / float64(len(history))
	}
	streakConsistency := float64(habit.BestStreak) / difficultyHistory

	raw := int(math.Round(100 * (1 - (0.7*rate + 0.3*streakConsistency))))
	return min(max(raw, 0), 100)
}

func newInsight(lang string, kind InsightType, args ...any) Insight {
	tpl := insightTemplates[kind]
	message := locale.Pick(lang, tpl.messageEN, tpl.messageZH)
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	return Insight{
		Type:    kind,
		Title:   locale.Pick(lang, tpl.titleEN, tpl.titleZH),
		Message: message,
	}
}

func categoryLabel(lang string, category db.Category) string {
	text, ok := categoryTexts[category]
	if !ok {
		text = categoryTexts[db.CategoryOther]
	}
	return locale.Pick(lang, text.labelEN, text.labelZH)
}

func optimalTimeFor(lang string, category db.Category) string {
	text, ok := categoryTexts[category]
	if !ok {
		text = categoryTexts[db.CategoryOther]
	}
	return locale.Pick(lang, text.timeEN, text.timeZH)
}
