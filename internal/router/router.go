package router

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/handler"
	"github.com/habitlog/internal/metrics"
)

const sessionName = "habitlog_session"

type routerOptions struct {
	writeLimit float64
	writeBurst int
}

// Option 调整路由的可选行为
type Option func(*routerOptions)

// WithWriteRateLimit 按客户端 IP 限制 /api 下的写请求，perSecond <= 0 时不限制
func WithWriteRateLimit(perSecond float64, burst int) Option {
	return func(o *routerOptions) {
		o.writeLimit = perSecond
		o.writeBurst = max(burst, 1)
	}
}

// SetupRouter 配置 Gin 引擎和路由，m 为 nil 时不暴露 /metrics
func SetupRouter(api *handler.API, sessionSecret string, m *metrics.Metrics, opts ...Option) *gin.Engine {
	var options routerOptions
	for _, opt := range opts {
		opt(&options)
	}

	r := gin.Default()

	if m != nil {
		r.Use(m.Middleware())
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// 配置会话中间件，语言偏好保存在 cookie 会话中
	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	apiGroup := r.Group("/api")
	if options.writeLimit > 0 {
		apiGroup.Use(writeRateLimit(newClientLimiters(options.writeLimit, options.writeBurst)))
	}
	apiGroup.Use(api.LocaleMiddleware())
	{
		apiGroup.GET("/habits", api.ListHabits)
		apiGroup.POST("/habits", api.CreateHabit)
		apiGroup.GET("/habits/:id", api.GetHabit)
		apiGroup.PATCH("/habits/:id", api.UpdateHabit)
		apiGroup.DELETE("/habits/:id", api.DeleteHabit)
		apiGroup.POST("/habits/:id/complete", api.CompleteHabit)
		apiGroup.POST("/habits/:id/skip", api.SkipHabit)
		apiGroup.GET("/habits/:id/history", api.GetHabitHistory)
		apiGroup.GET("/habits/:id/difficulty", api.GetHabitDifficulty)
		apiGroup.GET("/habits/:id/optimal-time", api.GetHabitOptimalTime)

		apiGroup.GET("/stats", api.GetStats)
		apiGroup.GET("/insights", api.GetInsights)
		apiGroup.GET("/insights/latest", api.GetLatestInsights)
		apiGroup.GET("/report", api.GetReport)

		apiGroup.GET("/export", api.ExportData)
		apiGroup.POST("/import", api.ImportData)
		apiGroup.DELETE("/data", api.ClearData)

		apiGroup.POST("/preferences/language", api.SetLanguagePreference)
	}

	return r
}
