package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/habitlog/internal/db"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

const maxHabitNameRunes = 100

var (
	// ErrHabitNotFound 在指定习惯不存在时返回
	ErrHabitNotFound = errors.New("habit not found")
	// ErrHabitNameRequired 习惯名称为空
	ErrHabitNameRequired = errors.New("habit name is required")
	// ErrHabitNameTooLong 习惯名称超出长度限制
	ErrHabitNameTooLong = errors.New("habit name is too long")
	// ErrInvalidImport 导入的数据结构不合法
	ErrInvalidImport = errors.New("invalid import document")
	// ErrDocumentCorrupt 已持久化的文档无法解析，写操作拒绝覆盖
	ErrDocumentCorrupt = errors.New("stored habit document is corrupt")
	// ErrFutureDate 打卡日期晚于今天
	ErrFutureDate = errors.New("date is in the future")
)

// HabitInput 定义创建习惯时可配置字段
type HabitInput struct {
	Name     string
	Category string
}

// HabitUpdate 定义部分更新，nil 字段保持不变
type HabitUpdate struct {
	Name     *string
	Category *string
}

// EventRecorder 接收习惯变更事件，用于指标统计
type EventRecorder interface {
	HabitEvent(event string)
}

type nopRecorder struct{}

func (nopRecorder) HabitEvent(string) {}

// HabitStore 负责习惯文档的读写，所有数据保存在 BlobStore 的单个键下。
// 读操作在文档损坏时回退为空文档；读-改-写在同一把锁内完成。
type HabitStore struct {
	mu        sync.Mutex
	backend   db.BlobStore
	key       string
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
	sanitizer *bluemonday.Policy
	events    EventRecorder
}

// NewHabitStore 构造 HabitStore
func NewHabitStore(backend db.BlobStore, logger *zap.Logger) *HabitStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HabitStore{
		backend:   backend,
		key:       db.DocumentKey,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
		sanitizer: bluemonday.StrictPolicy(),
		events:    nopRecorder{},
	}
}

// WithClock 允许在测试或特定场景下替换时钟
func (s *HabitStore) WithClock(now func() time.Time) *HabitStore {
	if now == nil {
		return s
	}
	s.now = now
	return s
}

// WithEventRecorder 注册变更事件的接收方
func (s *HabitStore) WithEventRecorder(recorder EventRecorder) *HabitStore {
	if recorder == nil {
		return s
	}
	s.events = recorder
	return s
}

// Now 返回 store 使用的当前时间
func (s *HabitStore) Now() time.Time {
	return s.now()
}

// GetHabits 返回全部习惯，保持创建顺序，Streak 为当前有效值
func (s *HabitStore) GetHabits() []db.Habit {
	var habits []db.Habit
	now := s.now()
	s.read(func(doc *db.Document) {
		habits = doc.Habits
		for i := range habits {
			habits[i].Streak = currentStreak(doc, habits[i], now)
		}
	})
	if habits == nil {
		habits = []db.Habit{}
	}
	return habits
}

// GetHabit 根据 ID 获取习惯
func (s *HabitStore) GetHabit(id string) (db.Habit, bool) {
	var (
		habit db.Habit
		found bool
	)
	now := s.now()
	s.read(func(doc *db.Document) {
		if idx := doc.FindHabit(id); idx >= 0 {
			habit = doc.Habits[idx]
			habit.Streak = currentStreak(doc, habit, now)
			found = true
		}
	})
	return habit, found
}

// GetHabitCompletions 返回最近 days 天的打卡状态，从旧到新
func (s *HabitStore) GetHabitCompletions(habitID string, days int) []DayStatus {
	var history []DayStatus
	now := s.now()
	s.read(func(doc *db.Document) {
		history = habitHistory(doc, habitID, days, now)
	})
	return history
}

// GetTodayCompletions 返回今天的打卡记录，键为习惯 ID
func (s *HabitStore) GetTodayCompletions() map[string]db.CompletionRecord {
	result := map[string]db.CompletionRecord{}
	today := db.FormatDate(s.now())
	s.read(func(doc *db.Document) {
		for habitID, record := range doc.Completions[today] {
			result[habitID] = record
		}
	})
	return result
}

// GetCompletionRate 返回最近 days 天的完成率百分比
func (s *HabitStore) GetCompletionRate(days int) int {
	var rate int
	now := s.now()
	s.read(func(doc *db.Document) {
		rate = completionRate(doc, days, now)
	})
	return rate
}

// Summary 汇总看板统计
func (s *HabitStore) Summary(windowDays int) HabitSummary {
	now := s.now()
	today := db.FormatDate(now)

	var summary HabitSummary
	s.read(func(doc *db.Document) {
		summary.TotalHabits = len(doc.Habits)
		summary.TodayRate = completionRate(doc, 1, now)
		summary.WindowDays = windowDays
		summary.WindowRate = completionRate(doc, windowDays, now)
		summary.BestStreak = bestStreakOf(doc.Habits)
		for _, habit := range doc.Habits {
			if record, ok := doc.Record(today, habit.ID); ok && record.Completed {
				summary.CompletedToday++
			}
		}
	})
	return summary
}

// AddHabit 新建习惯
func (s *HabitStore) AddHabit(input HabitInput) (*db.Habit, error) {
	name, err := s.cleanName(input.Name)
	if err != nil {
		return nil, err
	}

	habit := db.Habit{
		ID:        s.newID(),
		Name:      name,
		Category:  db.NormalizeCategory(input.Category),
		CreatedAt: s.now(),
	}

	if err := s.mutate(func(doc *db.Document) error {
		doc.Habits = append(doc.Habits, habit)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("add habit: %w", err)
	}

	s.events.HabitEvent("add")
	s.logger.Debug("habit added", zap.String("habit_id", habit.ID), zap.String("category", string(habit.Category)))
	return &habit, nil
}

// UpdateHabit 更新名称或类别，连胜相关字段只由打卡事件维护
func (s *HabitStore) UpdateHabit(id string, update HabitUpdate) (*db.Habit, error) {
	var name string
	if update.Name != nil {
		cleaned, err := s.cleanName(*update.Name)
		if err != nil {
			return nil, err
		}
		name = cleaned
	}

	var updated db.Habit
	err := s.mutate(func(doc *db.Document) error {
		idx := doc.FindHabit(id)
		if idx < 0 {
			return ErrHabitNotFound
		}
		habit := &doc.Habits[idx]
		if update.Name != nil {
			habit.Name = name
		}
		if update.Category != nil {
			habit.Category = db.NormalizeCategory(*update.Category)
		}
		updated = *habit
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrHabitNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update habit: %w", err)
	}
	s.events.HabitEvent("update")
	return &updated, nil
}

// DeleteHabit 删除习惯及其全部打卡记录，不存在的 ID 视为成功
func (s *HabitStore) DeleteHabit(id string) error {
	err := s.mutate(func(doc *db.Document) error {
		idx := doc.FindHabit(id)
		if idx < 0 {
			return ErrHabitNotFound
		}
		doc.Habits = append(doc.Habits[:idx], doc.Habits[idx+1:]...)
		doc.RemoveHabitRecords(id)
		return nil
	})
	if errors.Is(err, ErrHabitNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	s.events.HabitEvent("delete")
	s.logger.Debug("habit deleted", zap.String("habit_id", id))
	return nil
}

// MarkHabitComplete 记录完成，零值日期表示今天。
// 同一天重复完成不会重复累计 TotalCompletions。
func (s *HabitStore) MarkHabitComplete(id string, date time.Time) (*db.Habit, error) {
	now := s.now()
	day, err := s.resolveDate(date, now)
	if err != nil {
		return nil, err
	}
	key := db.FormatDate(day)

	var updated db.Habit
	err = s.mutate(func(doc *db.Document) error {
		idx := doc.FindHabit(id)
		if idx < 0 {
			return ErrHabitNotFound
		}
		habit := &doc.Habits[idx]

		previous, existed := doc.Record(key, id)
		doc.SetRecord(key, id, db.CompletionRecord{Completed: true, Counted: true, Timestamp: now})

		if !existed || !previous.WasCounted() {
			habit.TotalCompletions++
		}

		anchor := streakAnchor(*habit, day)
		if habit.LastCompleted == nil || key > *habit.LastCompleted {
			last := key
			habit.LastCompleted = &last
		}

		habit.Streak = computeStreak(doc, *habit, anchor, now)
		habit.BestStreak = max(habit.BestStreak, habit.Streak)
		updated = *habit
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrHabitNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("mark habit complete: %w", err)
	}

	s.events.HabitEvent("complete")
	s.logger.Debug("habit completed",
		zap.String("habit_id", id),
		zap.String("date", key),
		zap.Int("streak", updated.Streak),
		zap.Int("best_streak", updated.BestStreak),
	)
	return &updated, nil
}

// MarkHabitSkipped 记录跳过并将当前连胜清零，BestStreak 不受影响
func (s *HabitStore) MarkHabitSkipped(id string, date time.Time) (*db.Habit, error) {
	now := s.now()
	day, err := s.resolveDate(date, now)
	if err != nil {
		return nil, err
	}
	key := db.FormatDate(day)

	var updated db.Habit
	err = s.mutate(func(doc *db.Document) error {
		idx := doc.FindHabit(id)
		if idx < 0 {
			return ErrHabitNotFound
		}
		previous, _ := doc.Record(key, id)
		doc.SetRecord(key, id, db.CompletionRecord{Skipped: true, Counted: previous.WasCounted(), Timestamp: now})
		doc.Habits[idx].Streak = 0
		updated = doc.Habits[idx]
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrHabitNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("mark habit skipped: %w", err)
	}

	s.events.HabitEvent("skip")
	s.logger.Debug("habit skipped", zap.String("habit_id", id), zap.String("date", key))
	return &updated, nil
}

// ExportData 返回完整文档
func (s *HabitStore) ExportData() db.Document {
	var doc db.Document
	s.read(func(current *db.Document) {
		doc = *current
	})
	return doc
}

// ImportData 校验并整体替换文档，校验失败时不修改已有数据
func (s *HabitStore) ImportData(raw []byte) error {
	doc, err := decodeImport(raw, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(doc); err != nil {
		return fmt.Errorf("import habit document: %w", err)
	}

	s.events.HabitEvent("import")
	s.logger.Info("habit document imported", zap.Int("habits", len(doc.Habits)))
	return nil
}

// ClearAllData 删除全部数据
func (s *HabitStore) ClearAllData() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Delete(s.key); err != nil {
		return fmt.Errorf("clear habit document: %w", err)
	}
	s.events.HabitEvent("clear")
	return nil
}

func (s *HabitStore) cleanName(raw string) (string, error) {
	// NFC 归一化，组合字符按一个字符计入长度
	name := norm.NFC.String(strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(raw))))
	if name == "" {
		return "", ErrHabitNameRequired
	}
	if utf8.RuneCountInString(name) > maxHabitNameRunes {
		return "", fmt.Errorf("%w: max %d characters", ErrHabitNameTooLong, maxHabitNameRunes)
	}
	return name, nil
}

// resolveDate 零值表示今天；晚于今天的日期返回 ErrFutureDate
func (s *HabitStore) resolveDate(date, now time.Time) (time.Time, error) {
	today := normalizeToDate(now)
	if date.IsZero() {
		return today, nil
	}
	day := normalizeToDate(date.In(now.Location()))
	if day.After(today) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrFutureDate, db.FormatDate(day))
	}
	return day, nil
}

func (s *HabitStore) read(fn func(doc *db.Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		s.logger.Warn("falling back to empty habit document", zap.Error(err))
		doc = db.NewDocument(s.now())
	}
	fn(&doc)
}

func (s *HabitStore) mutate(fn func(doc *db.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return s.save(doc)
}

// load 读取文档；键不存在时返回空文档
func (s *HabitStore) load() (db.Document, error) {
	raw, err := s.backend.Get(s.key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return db.NewDocument(s.now()), nil
	}
	if err != nil {
		return db.Document{}, fmt.Errorf("load habit document: %w", err)
	}

	var doc db.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return db.Document{}, fmt.Errorf("%w: %v", ErrDocumentCorrupt, err)
	}
	if doc.Habits == nil {
		doc.Habits = []db.Habit{}
	}
	if doc.Completions == nil {
		doc.Completions = map[string]map[string]db.CompletionRecord{}
	}
	return doc, nil
}

func (s *HabitStore) save(doc db.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode habit document: %w", err)
	}
	if err := s.backend.Set(s.key, raw); err != nil {
		return fmt.Errorf("save habit document: %w", err)
	}
	return nil
}

type importDocument struct {
	Habits      *[]db.Habit                               `json:"habits"`
	Completions map[string]map[string]db.CompletionRecord `json:"completions"`
	Settings    *db.DocumentSettings                      `json:"settings"`
}

func decodeImport(raw []byte, now time.Time) (db.Document, error) {
	var incoming importDocument
	if err := json.Unmarshal(raw, &incoming); err != nil {
		return db.Document{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if incoming.Habits == nil {
		return db.Document{}, fmt.Errorf("%w: habits list is missing", ErrInvalidImport)
	}

	doc := db.NewDocument(now)
	if incoming.Settings != nil && !incoming.Settings.CreatedAt.IsZero() {
		doc.Settings = *incoming.Settings
	}

	seen := make(map[string]struct{}, len(*incoming.Habits))
	for i, habit := range *incoming.Habits {
		habit.ID = strings.TrimSpace(habit.ID)
		habit.Name = strings.TrimSpace(habit.Name)
		switch {
		case habit.ID == "":
			return db.Document{}, fmt.Errorf("%w: habit %d has no id", ErrInvalidImport, i)
		case habit.Name == "":
			return db.Document{}, fmt.Errorf("%w: habit %s has no name", ErrInvalidImport, habit.ID)
		case habit.Streak < 0 || habit.BestStreak < 0 || habit.TotalCompletions < 0:
			return db.Document{}, fmt.Errorf("%w: habit %s has negative counters", ErrInvalidImport, habit.ID)
		case habit.BestStreak < habit.Streak:
			return db.Document{}, fmt.Errorf("%w: habit %s best streak below current streak", ErrInvalidImport, habit.ID)
		}
		if _, dup := seen[habit.ID]; dup {
			return db.Document{}, fmt.Errorf("%w: duplicate habit id %s", ErrInvalidImport, habit.ID)
		}
		seen[habit.ID] = struct{}{}

		if habit.LastCompleted != nil {
			if _, err := time.Parse(db.DateLayout, *habit.LastCompleted); err != nil {
				return db.Document{}, fmt.Errorf("%w: habit %s has invalid lastCompleted", ErrInvalidImport, habit.ID)
			}
		}
		if habit.CreatedAt.IsZero() {
			habit.CreatedAt = now
		}
		habit.Category = db.NormalizeCategory(string(habit.Category))
		doc.Habits = append(doc.Habits, habit)
	}

	for date, day := range incoming.Completions {
		if _, err := time.Parse(db.DateLayout, date); err != nil {
			return db.Document{}, fmt.Errorf("%w: invalid completion date %q", ErrInvalidImport, date)
		}
		for habitID, record := range day {
			if record.Completed && record.Skipped {
				return db.Document{}, fmt.Errorf("%w: record %s/%s is both completed and skipped", ErrInvalidImport, date, habitID)
			}
			// 丢弃指向不存在习惯的孤儿记录
			if _, ok := seen[habitID]; !ok {
				continue
			}
			record.Counted = record.WasCounted()
			doc.SetRecord(date, habitID, record)
		}
	}

	return doc, nil
}
