package handler

import (
	"github.com/habitlog/internal/locale"
	"github.com/habitlog/internal/service"
	"go.uber.org/zap"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	habits          *service.HabitStore
	insights        *service.InsightService
	reports         *service.ReportService
	refresher       *service.InsightRefresher
	defaultLanguage string
	logger          *zap.Logger
}

// NewAPI constructs a handler set with shared services.
func NewAPI(habits *service.HabitStore, insights *service.InsightService, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		habits:          habits,
		insights:        insights,
		reports:         service.NewReportService(habits, insights),
		defaultLanguage: locale.Default,
		logger:          logger,
	}
}

// WithRefresher 挂载后台洞察刷新器，用于 /api/insights/latest
func (a *API) WithRefresher(refresher *service.InsightRefresher) *API {
	a.refresher = refresher
	return a
}

// WithDefaultLanguage 设置无法从请求推断语言时的兜底语言
func (a *API) WithDefaultLanguage(language string) *API {
	if normalized := locale.NormalizeLanguage(language); normalized != "" {
		a.defaultLanguage = normalized
	}
	return a
}
