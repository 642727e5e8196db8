package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/service"
	"go.uber.org/zap"
)

const defaultHistoryDays = 30

type habitPayload struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

type habitUpdatePayload struct {
	Name     *string `json:"name"`
	Category *string `json:"category"`
}

type completionPayload struct {
	Date string `json:"date"` // 2006-01-02，可选
}

// ListHabits 返回全部习惯
func (a *API) ListHabits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"habits": a.habits.GetHabits()})
}

// GetHabit 返回单个习惯以及难度、建议时段
func (a *API) GetHabit(c *gin.Context) {
	id := c.Param("id")
	habit, ok := a.habits.GetHabit(id)
	if !ok {
		respondError(c, http.StatusNotFound, "habit not found")
		return
	}

	lang := a.requestLocale(c).Language
	difficulty, _ := a.insights.CalculateHabitDifficulty(id)
	optimalTime, _ := a.insights.PredictOptimalTime(lang, id)
	likelihood, _ := a.insights.SuccessLikelihood(id)

	c.JSON(http.StatusOK, gin.H{
		"habit":              habit,
		"difficulty":         difficulty,
		"optimal_time":       optimalTime,
		"success_likelihood": likelihood,
	})
}

// CreateHabit 创建习惯
func (a *API) CreateHabit(c *gin.Context) {
	var payload habitPayload
	if !bindJSON(c, &payload, "invalid request body") {
		return
	}

	habit, err := a.habits.AddHabit(service.HabitInput{Name: payload.Name, Category: payload.Category})
	if err != nil {
		a.handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"habit": habit})
}

// UpdateHabit 部分更新名称或类别
func (a *API) UpdateHabit(c *gin.Context) {
	var payload habitUpdatePayload
	if !bindJSON(c, &payload, "invalid request body") {
		return
	}

	habit, err := a.habits.UpdateHabit(c.Param("id"), service.HabitUpdate{Name: payload.Name, Category: payload.Category})
	if err != nil {
		a.handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habit})
}

// DeleteHabit 删除习惯及其全部打卡记录
func (a *API) DeleteHabit(c *gin.Context) {
	if err := a.habits.DeleteHabit(c.Param("id")); err != nil {
		a.handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// CompleteHabit 标记某天完成，默认今天
func (a *API) CompleteHabit(c *gin.Context) {
	a.recordCompletion(c, a.habits.MarkHabitComplete)
}

// SkipHabit 标记某天跳过，默认今天
func (a *API) SkipHabit(c *gin.Context) {
	a.recordCompletion(c, a.habits.MarkHabitSkipped)
}

func (a *API) recordCompletion(c *gin.Context, mark func(id string, date time.Time) (*db.Habit, error)) {
	var payload completionPayload
	if !bindOptionalJSON(c, &payload, "invalid request body") {
		return
	}

	date, ok := parseOptionalDate(payload.Date, a.habits.Now().Location())
	if !ok {
		respondError(c, http.StatusBadRequest, "date must use YYYY-MM-DD")
		return
	}

	habit, err := mark(c.Param("id"), date)
	if err != nil {
		a.handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habit})
}

// GetHabitHistory 返回最近 days 天的打卡状态，从旧到新
func (a *API) GetHabitHistory(c *gin.Context) {
	id := c.Param("id")
	if _, ok := a.habits.GetHabit(id); !ok {
		respondError(c, http.StatusNotFound, "habit not found")
		return
	}

	days, err := parseDaysQuery(c, defaultHistoryDays)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"habit_id": id,
		"days":     days,
		"history":  a.habits.GetHabitCompletions(id, days),
	})
}

// GetHabitDifficulty 返回 0-100 的难度评分
func (a *API) GetHabitDifficulty(c *gin.Context) {
	id := c.Param("id")
	difficulty, ok := a.insights.CalculateHabitDifficulty(id)
	if !ok {
		respondError(c, http.StatusNotFound, "habit not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit_id": id, "difficulty": difficulty})
}

// GetHabitOptimalTime 返回按类别推荐的执行时段
func (a *API) GetHabitOptimalTime(c *gin.Context) {
	id := c.Param("id")
	lang := a.requestLocale(c).Language
	optimalTime, ok := a.insights.PredictOptimalTime(lang, id)
	if !ok {
		respondError(c, http.StatusNotFound, "habit not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit_id": id, "optimal_time": optimalTime, "language": lang})
}

func (a *API) handleHabitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrHabitNotFound):
		respondError(c, http.StatusNotFound, "habit not found")
	case errors.Is(err, service.ErrHabitNameRequired):
		respondError(c, http.StatusBadRequest, "habit name is required")
	case errors.Is(err, service.ErrHabitNameTooLong):
		respondError(c, http.StatusBadRequest, "habit name is too long")
	case errors.Is(err, service.ErrFutureDate):
		respondError(c, http.StatusBadRequest, "date cannot be in the future")
	case errors.Is(err, service.ErrInvalidImport):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("habit operation failed", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "operation failed")
	}
}
