package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/db"
	"go.uber.org/zap"
)

const maxImportBytes = 10 << 20

// ExportData 以附件形式下载完整文档
func (a *API) ExportData(c *gin.Context) {
	filename := fmt.Sprintf("habit-tracker-backup-%s.json", db.FormatDate(a.habits.Now()))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.IndentedJSON(http.StatusOK, a.habits.ExportData())
}

// ImportData 用请求体中的文档替换现有数据，校验失败时保留原数据
func (a *API) ImportData(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	raw, err := c.GetRawData()
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := a.habits.ImportData(raw); err != nil {
		a.handleHabitError(c, err)
		return
	}

	a.logger.Info("habit data imported", zap.Int("habits", len(a.habits.GetHabits())))
	c.JSON(http.StatusOK, gin.H{"imported": true, "habits": len(a.habits.GetHabits())})
}

// ClearData 清空全部习惯与打卡记录
func (a *API) ClearData(c *gin.Context) {
	if err := a.habits.ClearAllData(); err != nil {
		a.handleHabitError(c, err)
		return
	}

	a.logger.Info("habit data cleared")
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
