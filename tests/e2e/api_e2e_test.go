package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/handler"
	"github.com/habitlog/internal/metrics"
	"github.com/habitlog/internal/router"
	"github.com/habitlog/internal/service"
	"go.uber.org/zap"
)

type e2eSuite struct {
	handler   http.Handler
	client    httpClient
	baseURL   string
	refresher *service.InsightRefresher
	habits    map[string]db.Habit
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(handler http.Handler, withJar bool) *localClient {
	var jar http.CookieJar
	if withJar {
		if j, err := cookiejar.New(nil); err == nil {
			jar = j
		}
	}
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) Do(req *http.Request) (*http.Response, error) {
	if c.jar != nil {
		for _, cookie := range c.jar.Cookies(req.URL) {
			req.AddCookie(cookie)
		}
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	if c.jar != nil {
		c.jar.SetCookies(req.URL, resp.Cookies())
	}
	return resp, nil
}

func TestE2E_AllInterfaces(t *testing.T) {
	suite := newE2ESuite(t)

	t.Run("habit lifecycle", suite.testHabitLifecycle)
	t.Run("insights and stats", suite.testInsightsAndStats)
	t.Run("language preference", suite.testLanguagePreference)
	t.Run("backup round trip", suite.testBackupRoundTrip)
	t.Run("metrics", suite.testMetrics)
}

func newE2ESuite(t *testing.T) *e2eSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := db.Open(filepath.Join(t.TempDir(), "habitlog.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })

	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	m := metrics.New()
	store := service.NewHabitStore(db.NewKVStore(gdb), zap.NewNop()).
		WithClock(clock).
		WithEventRecorder(m)
	insights := service.NewInsightService(store)
	refresher := service.NewInsightRefresher(insights, "en", zap.NewNop()).WithRecorder(m)
	api := handler.NewAPI(store, insights, zap.NewNop()).WithRefresher(refresher)

	engine := router.SetupRouter(api, "e2e-secret", m)
	return &e2eSuite{
		handler:   engine,
		client:    newLocalClient(engine, true),
		baseURL:   "http://habitlog.test",
		refresher: refresher,
		habits:    make(map[string]db.Habit),
	}
}

func (s *e2eSuite) do(t *testing.T, method, path string, body any, headers map[string]string) (int, http.Header, []byte) {
	t.Helper()

	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("encode request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reader)
	if err != nil {
		t.Fatalf("build request %s %s: %v", method, path, err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp.StatusCode, resp.Header, raw
}

func (s *e2eSuite) expectJSON(t *testing.T, method, path string, body any, want int, target any) {
	t.Helper()
	status, _, raw := s.do(t, method, path, body, nil)
	if status != want {
		t.Fatalf("%s %s: expected status %d, got %d: %s", method, path, want, status, raw)
	}
	if target == nil {
		return
	}
	if err := json.Unmarshal(raw, target); err != nil {
		t.Fatalf("%s %s: decode response: %v (%s)", method, path, err, raw)
	}
}

func (s *e2eSuite) testHabitLifecycle(t *testing.T) {
	for _, input := range []struct{ name, category string }{
		{"Morning run", "health"},
		{"Read 20 pages", "learning"},
		{"Call a friend", "social"},
	} {
		var created struct {
			Habit db.Habit `json:"habit"`
		}
		s.expectJSON(t, http.MethodPost, "/api/habits", map[string]string{"name": input.name, "category": input.category}, http.StatusCreated, &created)
		if created.Habit.ID == "" || created.Habit.Name != input.name {
			t.Fatalf("unexpected created habit %+v", created.Habit)
		}
		s.habits[input.name] = created.Habit
	}

	run := s.habits["Morning run"]
	for _, date := range []string{"2024-05-08", "2024-05-09", "2024-05-10"} {
		s.expectJSON(t, http.MethodPost, fmt.Sprintf("/api/habits/%s/complete", run.ID), map[string]string{"date": date}, http.StatusOK, nil)
	}
	s.expectJSON(t, http.MethodPost, fmt.Sprintf("/api/habits/%s/complete", run.ID), map[string]string{"date": "2024-05-11"}, http.StatusBadRequest, nil)
	// 同一天重复打卡是幂等的
	var completed struct {
		Habit db.Habit `json:"habit"`
	}
	s.expectJSON(t, http.MethodPost, fmt.Sprintf("/api/habits/%s/complete", run.ID), nil, http.StatusOK, &completed)
	if completed.Habit.Streak != 3 || completed.Habit.TotalCompletions != 3 {
		t.Fatalf("expected streak 3 and total 3, got %+v", completed.Habit)
	}

	read := s.habits["Read 20 pages"]
	s.expectJSON(t, http.MethodPost, fmt.Sprintf("/api/habits/%s/complete", read.ID), nil, http.StatusOK, nil)
	var skipped struct {
		Habit db.Habit `json:"habit"`
	}
	s.expectJSON(t, http.MethodPost, fmt.Sprintf("/api/habits/%s/skip", read.ID), nil, http.StatusOK, &skipped)
	if skipped.Habit.Streak != 0 || skipped.Habit.BestStreak != 1 {
		t.Fatalf("expected skip to reset streak and keep best, got %+v", skipped.Habit)
	}

	var history struct {
		History []service.DayStatus `json:"history"`
	}
	s.expectJSON(t, http.MethodGet, fmt.Sprintf("/api/habits/%s/history?days=3", run.ID), nil, http.StatusOK, &history)
	if len(history.History) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(history.History))
	}
	for _, day := range history.History {
		if !day.Completed {
			t.Fatalf("expected every day completed, got %+v", history.History)
		}
	}

	friend := s.habits["Call a friend"]
	var updated struct {
		Habit db.Habit `json:"habit"`
	}
	s.expectJSON(t, http.MethodPatch, "/api/habits/"+friend.ID, map[string]string{"category": "productivity"}, http.StatusOK, &updated)
	if updated.Habit.Category != db.CategoryProductivity {
		t.Fatalf("expected category update, got %+v", updated.Habit)
	}

	s.expectJSON(t, http.MethodDelete, "/api/habits/"+friend.ID, nil, http.StatusOK, nil)
	s.expectJSON(t, http.MethodGet, "/api/habits/"+friend.ID, nil, http.StatusNotFound, nil)
	s.expectJSON(t, http.MethodPost, fmt.Sprintf("/api/habits/%s/complete", friend.ID), nil, http.StatusNotFound, nil)
	delete(s.habits, "Call a friend")

	var list struct {
		Habits []db.Habit `json:"habits"`
	}
	s.expectJSON(t, http.MethodGet, "/api/habits", nil, http.StatusOK, &list)
	if len(list.Habits) != 2 {
		t.Fatalf("expected 2 habits after delete, got %d", len(list.Habits))
	}
}

func (s *e2eSuite) testInsightsAndStats(t *testing.T) {
	var stats struct {
		Stats service.HabitSummary `json:"stats"`
	}
	s.expectJSON(t, http.MethodGet, "/api/stats?days=1", nil, http.StatusOK, &stats)
	if stats.Stats.TotalHabits != 2 || stats.Stats.CompletedToday != 1 || stats.Stats.BestStreak != 3 {
		t.Fatalf("unexpected stats %+v", stats.Stats)
	}

	var insights struct {
		Language string `json:"language"`
		Insights []struct {
			Type  string `json:"type"`
			Icon  string `json:"icon"`
			Title string `json:"title"`
		} `json:"insights"`
	}
	s.expectJSON(t, http.MethodGet, "/api/insights", nil, http.StatusOK, &insights)
	if insights.Language != "en" {
		t.Fatalf("expected english insights, got %q", insights.Language)
	}
	if len(insights.Insights) == 0 || len(insights.Insights) > 5 {
		t.Fatalf("expected 1-5 insights, got %d", len(insights.Insights))
	}
	for _, insight := range insights.Insights {
		if insight.Type == string(service.InsightWelcome) {
			t.Fatalf("welcome insight must not appear when habits exist")
		}
		if insight.Icon == "" || insight.Title == "" {
			t.Fatalf("insight missing icon or title: %+v", insight)
		}
	}

	s.expectJSON(t, http.MethodGet, "/api/insights/latest", nil, http.StatusServiceUnavailable, nil)
	s.refresher.Refresh()
	var latest struct {
		Insights []map[string]string `json:"insights"`
	}
	s.expectJSON(t, http.MethodGet, "/api/insights/latest", nil, http.StatusOK, &latest)
	if len(latest.Insights) != len(insights.Insights) {
		t.Fatalf("expected refreshed snapshot to match live insights, got %d vs %d", len(latest.Insights), len(insights.Insights))
	}

	run := s.habits["Morning run"]
	var difficulty struct {
		Difficulty int `json:"difficulty"`
	}
	s.expectJSON(t, http.MethodGet, fmt.Sprintf("/api/habits/%s/difficulty", run.ID), nil, http.StatusOK, &difficulty)
	if difficulty.Difficulty < 0 || difficulty.Difficulty > 100 {
		t.Fatalf("difficulty out of range: %d", difficulty.Difficulty)
	}

	status, header, raw := s.do(t, http.MethodGet, "/api/report?format=markdown", nil, nil)
	if status != http.StatusOK || !strings.HasPrefix(header.Get("Content-Type"), "text/markdown") {
		t.Fatalf("unexpected report response %d %q", status, header.Get("Content-Type"))
	}
	if !bytes.Contains(raw, []byte("Morning run")) {
		t.Fatalf("expected report to list habits, got %s", raw)
	}
}

func (s *e2eSuite) testLanguagePreference(t *testing.T) {
	_, header, _ := s.do(t, http.MethodGet, "/api/habits", nil, map[string]string{"Accept-Language": "zh-CN,zh;q=0.9"})
	if got := header.Get("Content-Language"); got != "zh" {
		t.Fatalf("expected Accept-Language to select zh, got %q", got)
	}

	s.expectJSON(t, http.MethodPost, "/api/preferences/language", map[string]string{"language": "zh"}, http.StatusOK, nil)

	// 会话中的偏好优先于 Accept-Language
	_, header, raw := s.do(t, http.MethodGet, "/api/insights", nil, map[string]string{"Accept-Language": "en-US"})
	if got := header.Get("Content-Language"); got != "zh" {
		t.Fatalf("expected session preference zh, got %q", got)
	}
	var insights struct {
		Language string `json:"language"`
	}
	if err := json.Unmarshal(raw, &insights); err != nil || insights.Language != "zh" {
		t.Fatalf("expected zh insights, got %s", raw)
	}

	_, header, _ = s.do(t, http.MethodGet, "/api/habits?lang=en", nil, nil)
	if got := header.Get("Content-Language"); got != "en" {
		t.Fatalf("expected ?lang to override session, got %q", got)
	}

	s.expectJSON(t, http.MethodPost, "/api/preferences/language", map[string]string{"language": "en"}, http.StatusOK, nil)
}

func (s *e2eSuite) testBackupRoundTrip(t *testing.T) {
	status, header, exported := s.do(t, http.MethodGet, "/api/export", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("export failed with %d", status)
	}
	if disposition := header.Get("Content-Disposition"); !strings.Contains(disposition, "habit-tracker-backup-2024-05-10.json") {
		t.Fatalf("unexpected Content-Disposition %q", disposition)
	}

	s.expectJSON(t, http.MethodDelete, "/api/data", nil, http.StatusOK, nil)
	var list struct {
		Habits []db.Habit `json:"habits"`
	}
	s.expectJSON(t, http.MethodGet, "/api/habits", nil, http.StatusOK, &list)
	if len(list.Habits) != 0 {
		t.Fatalf("expected no habits after clear, got %d", len(list.Habits))
	}

	s.expectJSON(t, http.MethodPost, "/api/import", []byte(`{"habits": 42}`), http.StatusBadRequest, nil)

	var imported struct {
		Habits int `json:"habits"`
	}
	s.expectJSON(t, http.MethodPost, "/api/import", exported, http.StatusOK, &imported)
	if imported.Habits != 2 {
		t.Fatalf("expected 2 imported habits, got %d", imported.Habits)
	}

	var run struct {
		Habit db.Habit `json:"habit"`
	}
	s.expectJSON(t, http.MethodGet, "/api/habits/"+s.habits["Morning run"].ID, nil, http.StatusOK, &run)
	if run.Habit.Streak != 3 || run.Habit.TotalCompletions != 3 {
		t.Fatalf("expected counters to survive the round trip, got %+v", run.Habit)
	}
}

func (s *e2eSuite) testMetrics(t *testing.T) {
	status, _, raw := s.do(t, http.MethodGet, "/metrics", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("metrics returned %d", status)
	}
	for _, want := range []string{
		`habitlog_habit_events_total{event="add"} 3`,
		`habitlog_habit_events_total{event="import"} 1`,
		`habitlog_insight_refreshes_total 1`,
		`habitlog_http_requests_total{method="POST",route="/api/habits",status="201"} 3`,
	} {
		if !bytes.Contains(raw, []byte(want)) {
			t.Fatalf("expected metrics output to contain %q", want)
		}
	}
}
