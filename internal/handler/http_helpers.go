package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/db"
)

const maxQueryDays = 365

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// bindOptionalJSON 与 bindJSON 相同，但允许空请求体
func bindOptionalJSON(c *gin.Context, dst interface{}, message string) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// parseDaysQuery 解析 days 查询参数，缺省时返回 fallback，范围为 [1,365]
func parseDaysQuery(c *gin.Context, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query("days"))
	if raw == "" {
		return fallback, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > maxQueryDays {
		return 0, fmt.Errorf("days must be between 1 and %d", maxQueryDays)
	}
	return days, nil
}

// parseOptionalDate 在 loc 时区解析 YYYY-MM-DD，空字符串返回零值表示今天
func parseOptionalDate(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, true
	}

	t, err := time.ParseInLocation(db.DateLayout, value, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
