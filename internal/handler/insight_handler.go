package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/service"
	"go.uber.org/zap"
)

const defaultStatsDays = 7

// GetInsights 按请求语言实时生成洞察
func (a *API) GetInsights(c *gin.Context) {
	lang := a.requestLocale(c).Language
	c.JSON(http.StatusOK, gin.H{
		"language": lang,
		"insights": serializeInsights(a.insights.GenerateInsights(lang)),
	})
}

// GetLatestInsights 返回后台刷新器最近一次生成的快照
func (a *API) GetLatestInsights(c *gin.Context) {
	if a.refresher == nil {
		respondError(c, http.StatusServiceUnavailable, "insight refresher is not running")
		return
	}
	snapshot, ok := a.refresher.Latest()
	if !ok {
		respondError(c, http.StatusServiceUnavailable, "insights are not ready yet")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"language":     snapshot.Language,
		"generated_at": snapshot.GeneratedAt,
		"insights":     serializeInsights(snapshot.Insights),
	})
}

// GetStats 返回今日及最近 days 天的完成统计
func (a *API) GetStats(c *gin.Context) {
	days, err := parseDaysQuery(c, defaultStatsDays)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": a.habits.Summary(days)})
}

// GetReport 输出 markdown 或 HTML 报告
func (a *API) GetReport(c *gin.Context) {
	lang := a.requestLocale(c).Language

	switch strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "markdown"))) {
	case "markdown", "md":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(a.reports.Markdown(lang)))
	case "html":
		body, err := a.reports.HTML(lang)
		if err != nil {
			a.logger.Error("render report failed", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "failed to render report")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(body))
	default:
		respondError(c, http.StatusBadRequest, "format must be markdown or html")
	}
}

func serializeInsights(insights []service.Insight) []gin.H {
	items := make([]gin.H, 0, len(insights))
	for _, insight := range insights {
		items = append(items, gin.H{
			"type":    insight.Type,
			"icon":    insight.Type.Icon(),
			"title":   insight.Title,
			"message": insight.Message,
		})
	}
	return items
}
