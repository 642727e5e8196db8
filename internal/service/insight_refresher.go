package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultRefreshInterval = 30 * time.Second

// InsightSnapshot 是最近一次定时生成的洞察
type InsightSnapshot struct {
	Insights    []Insight `json:"insights"`
	Language    string    `json:"language"`
	GeneratedAt time.Time `json:"generated_at"`
}

// RefreshRecorder 接收每次刷新后的洞察条数
type RefreshRecorder interface {
	InsightsRefreshed(count int)
}

// InsightRefresher 定时重新生成洞察并缓存最新结果，通过 context 取消
type InsightRefresher struct {
	insights *InsightService
	interval time.Duration
	language string
	logger   *zap.Logger
	now      func() time.Time
	recorder RefreshRecorder

	mu     sync.RWMutex
	latest InsightSnapshot
}

// NewInsightRefresher 创建 InsightRefresher，默认间隔为 30 秒
func NewInsightRefresher(insights *InsightService, language string, logger *zap.Logger) *InsightRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InsightRefresher{
		insights: insights,
		interval: defaultRefreshInterval,
		language: language,
		logger:   logger,
		now:      time.Now,
	}
}

// WithInterval 调整刷新间隔，非正数忽略
func (r *InsightRefresher) WithInterval(d time.Duration) *InsightRefresher {
	if d <= 0 {
		return r
	}
	r.interval = d
	return r
}

// WithRecorder 注册刷新指标的接收方
func (r *InsightRefresher) WithRecorder(recorder RefreshRecorder) *InsightRefresher {
	r.recorder = recorder
	return r
}

// Run 立即生成一次，然后按间隔刷新，直到 ctx 结束
func (r *InsightRefresher) Run(ctx context.Context) {
	r.Refresh()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("insight refresher stopped", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
			r.Refresh()
		}
	}
}

// Refresh 同步生成一次洞察并替换快照
func (r *InsightRefresher) Refresh() InsightSnapshot {
	snapshot := InsightSnapshot{
		Insights:    r.insights.GenerateInsights(r.language),
		Language:    r.language,
		GeneratedAt: r.now(),
	}

	r.mu.Lock()
	changed := !sameInsights(r.latest.Insights, snapshot.Insights)
	r.latest = snapshot
	r.mu.Unlock()

	if r.recorder != nil {
		r.recorder.InsightsRefreshed(len(snapshot.Insights))
	}
	if changed {
		types := make([]string, 0, len(snapshot.Insights))
		for _, insight := range snapshot.Insights {
			types = append(types, string(insight.Type))
		}
		r.logger.Info("insights refreshed", zap.Strings("types", types))
	}
	return snapshot
}

// Latest 返回最近一次快照，尚未生成时 ok 为 false
func (r *InsightRefresher) Latest() (InsightSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest, !r.latest.GeneratedAt.IsZero()
}

func sameInsights(a, b []Insight) bool {
	return slices.Equal(a, b)
}
