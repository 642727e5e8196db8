package service

import (
	"context"
	"testing"
	"time"

	"github.com/habitlog/internal/db"
	"go.uber.org/zap"
)

func TestInsightRefresherLatestBeforeRun(t *testing.T) {
	refresher := NewInsightRefresher(NewInsightService(newFakeReader(12)), "en", nil)
	if _, ok := refresher.Latest(); ok {
		t.Fatal("expected no snapshot before first refresh")
	}
}

func TestInsightRefresherRefreshReplacesSnapshot(t *testing.T) {
	reader := newFakeReader(12)
	refresher := NewInsightRefresher(NewInsightService(reader), "zh", zap.NewNop())
	refresher.now = reader.Now

	first := refresher.Refresh()
	if len(first.Insights) != 1 || first.Insights[0].Type != InsightWelcome {
		t.Fatalf("expected welcome snapshot, got %+v", first)
	}
	if first.Language != "zh" || !first.GeneratedAt.Equal(reader.now) {
		t.Fatalf("unexpected snapshot metadata: %+v", first)
	}

	reader.rate = 90
	reader.addHabit(db.Habit{ID: "a", Name: "Run", Category: db.CategoryHealth}, 0)
	refresher.Refresh()

	latest, ok := refresher.Latest()
	if !ok {
		t.Fatal("expected snapshot after refresh")
	}
	if latest.Insights[0].Type != InsightSuccess {
		t.Fatalf("expected refreshed insights, got %v", insightTypes(latest.Insights))
	}
}

func TestInsightRefresherRunStopsOnCancel(t *testing.T) {
	refresher := NewInsightRefresher(NewInsightService(newFakeReader(12)), "en", zap.NewNop()).
		WithInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		refresher.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := refresher.Latest(); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("refresher did not produce a snapshot")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not stop after cancel")
	}
}

func TestInsightRefresherIgnoresNonPositiveInterval(t *testing.T) {
	refresher := NewInsightRefresher(NewInsightService(newFakeReader(12)), "en", nil).WithInterval(0)
	if refresher.interval != defaultRefreshInterval {
		t.Fatalf("expected default interval, got %s", refresher.interval)
	}
}

type refreshCounter struct {
	calls int
	last  int
}

func (r *refreshCounter) InsightsRefreshed(count int) {
	r.calls++
	r.last = count
}

func TestInsightRefresherReportsToRecorder(t *testing.T) {
	counter := &refreshCounter{}
	refresher := NewInsightRefresher(NewInsightService(newFakeReader(12)), "en", nil).WithRecorder(counter)

	refresher.Refresh()
	refresher.Refresh()

	if counter.calls != 2 || counter.last != 1 {
		t.Fatalf("unexpected recorder state: %+v", counter)
	}
}
