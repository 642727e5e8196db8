package db

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupKVTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:kv-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		_ = Close(gdb)
	})
	return gdb
}

func TestKVStoreGetSetDelete(t *testing.T) {
	store := NewKVStore(setupKVTestDB(t))

	if _, err := store.Get(DocumentKey); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := store.Set(DocumentKey, []byte(`{"habits":[]}`)); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	// 重复写入走 upsert
	if err := store.Set(DocumentKey, []byte(`{"habits":[1]}`)); err != nil {
		t.Fatalf("second Set returned error: %v", err)
	}

	value, err := store.Get(DocumentKey)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if string(value) != `{"habits":[1]}` {
		t.Fatalf("unexpected value %q", value)
	}

	if err := store.Delete(DocumentKey); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := store.Get(DocumentKey); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected key to be gone, got %v", err)
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore()
	value := []byte("abc")
	if err := store.Set("k", value); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	value[0] = 'x'

	got, err := store.Get("k")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("expected stored copy to be unchanged, got %q", got)
	}
}

func TestDocumentRecordHelpers(t *testing.T) {
	doc := NewDocument(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	doc.SetRecord("2024-05-01", "a", CompletionRecord{Completed: true})
	doc.SetRecord("2024-05-01", "b", CompletionRecord{Skipped: true})
	doc.SetRecord("2024-05-02", "a", CompletionRecord{Completed: true})

	if rec, ok := doc.Record("2024-05-01", "b"); !ok || !rec.Skipped {
		t.Fatalf("expected skipped record for b, got %+v (ok=%v)", rec, ok)
	}

	doc.RemoveHabitRecords("a")
	if _, ok := doc.Record("2024-05-01", "a"); ok {
		t.Fatal("expected record for a to be removed")
	}
	if _, ok := doc.Completions["2024-05-02"]; ok {
		t.Fatal("expected empty date bucket to be removed")
	}
	if _, ok := doc.Record("2024-05-01", "b"); !ok {
		t.Fatal("expected record for b to survive")
	}
}

func TestNormalizeCategory(t *testing.T) {
	cases := []struct {
		input string
		want  Category
	}{
		{input: "health", want: CategoryHealth},
		{input: " Learning ", want: CategoryLearning},
		{input: "SOCIAL", want: CategorySocial},
		{input: "hobby", want: CategoryOther},
		{input: "", want: CategoryOther},
	}

	for _, tc := range cases {
		if got := NormalizeCategory(tc.input); got != tc.want {
			t.Fatalf("NormalizeCategory(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
