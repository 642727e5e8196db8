package db

import (
	"strings"
	"time"
)

// DateLayout 是打卡记录使用的日历日格式
const DateLayout = "2006-01-02"

// Category 描述习惯类别
type Category string

const (
	CategoryHealth       Category = "health"
	CategoryProductivity Category = "productivity"
	CategoryLearning     Category = "learning"
	CategorySocial       Category = "social"
	CategoryOther        Category = "other"
)

// Categories 按展示顺序列出全部类别
var Categories = []Category{
	CategoryHealth,
	CategoryProductivity,
	CategoryLearning,
	CategorySocial,
	CategoryOther,
}

// NormalizeCategory 统一大小写，未知类别回退为 other
func NormalizeCategory(raw string) Category {
	trimmed := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, candidate := range Categories {
		if trimmed == candidate {
			return candidate
		}
	}
	return CategoryOther
}

// Habit 定义了习惯模型
// Streak/BestStreak/TotalCompletions 由打卡事件维护，BestStreak 永远不小于 Streak
// LastCompleted 为最近一次完成的日历日（YYYY-MM-DD），未完成过时为 nil
type Habit struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Category         Category  `json:"category"`
	CreatedAt        time.Time `json:"createdAt"`
	Streak           int       `json:"streak"`
	BestStreak       int       `json:"bestStreak"`
	TotalCompletions int       `json:"totalCompletions"`
	LastCompleted    *string   `json:"lastCompleted"`
}

// CompletionRecord 记录某一天某个习惯的打卡状态
// Completed 与 Skipped 互斥，跳过会覆盖当天的完成记录。
// Counted 表示这一天已计入 TotalCompletions，跳过时保留
type CompletionRecord struct {
	Completed bool      `json:"completed"`
	Skipped   bool      `json:"skipped,omitempty"`
	Counted   bool      `json:"counted,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WasCounted 报告这一天是否已计入完成次数
func (r CompletionRecord) WasCounted() bool {
	return r.Completed || r.Counted
}

// DocumentSettings 保存文档级元数据
type DocumentSettings struct {
	CreatedAt time.Time `json:"createdAt"`
}

// Document 是持久化的完整数据文档
// Completions 以日期为一级键、习惯 ID 为二级键
type Document struct {
	Habits      []Habit                                `json:"habits"`
	Completions map[string]map[string]CompletionRecord `json:"completions"`
	Settings    DocumentSettings                       `json:"settings"`
}

// NewDocument 返回空文档
func NewDocument(now time.Time) Document {
	return Document{
		Habits:      []Habit{},
		Completions: map[string]map[string]CompletionRecord{},
		Settings:    DocumentSettings{CreatedAt: now},
	}
}

// FindHabit 返回习惯在切片中的下标，不存在时返回 -1
func (d *Document) FindHabit(id string) int {
	for i := range d.Habits {
		if d.Habits[i].ID == id {
			return i
		}
	}
	return -1
}

// Record 查询某天某个习惯的打卡记录
func (d *Document) Record(date, habitID string) (CompletionRecord, bool) {
	day, ok := d.Completions[date]
	if !ok {
		return CompletionRecord{}, false
	}
	record, ok := day[habitID]
	return record, ok
}

// SetRecord 写入打卡记录，同一天同一习惯只保留一条
func (d *Document) SetRecord(date, habitID string, record CompletionRecord) {
	if d.Completions == nil {
		d.Completions = map[string]map[string]CompletionRecord{}
	}
	day, ok := d.Completions[date]
	if !ok {
		day = map[string]CompletionRecord{}
		d.Completions[date] = day
	}
	day[habitID] = record
}

// RemoveHabitRecords 删除习惯的全部打卡记录，空的日期桶一并清理
func (d *Document) RemoveHabitRecords(habitID string) {
	for date, day := range d.Completions {
		delete(day, habitID)
		if len(day) == 0 {
			delete(d.Completions, date)
		}
	}
}

// FormatDate 将时间转换为本地日历日字符串
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
