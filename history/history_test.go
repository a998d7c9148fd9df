package history

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"xarc/config"
)

func setupTestIndex(t *testing.T) *Index {
	t.Helper()
	cfg := &config.HistoryConfig{
		Enable: true,
		Path:   filepath.Join(t.TempDir(), "history.db"),
	}
	idx, err := Open(cfg, zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1))))
	if err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	if idx == nil {
		t.Fatal("Open() returned nil index for enabled configuration")
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestOpen_Disabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.HistoryConfig
	}{
		{"disabled", config.HistoryConfig{Enable: false, Path: "unused.db"}},
		{"no path", config.HistoryConfig{Enable: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := Open(&tt.cfg, zaptest.NewLogger(t))
			if err != nil {
				t.Fatalf("Open() returned error: %v", err)
			}
			if idx != nil {
				t.Error("expected nil index for disabled configuration")
			}
		})
	}
}

func TestSeenRecordRoundTrip(t *testing.T) {
	idx := setupTestIndex(t)

	if idx.Seen("1845") {
		t.Error("empty index reported article as seen")
	}

	e := Entry{
		ID:         "1845",
		Title:      "Test Article",
		Path:       "/output/test-article/test-article.md",
		ArchivedAt: time.Date(2026, 8, 21, 10, 30, 0, 0, time.UTC),
	}
	if err := idx.Record(e); err != nil {
		t.Fatalf("Record() returned error: %v", err)
	}

	if !idx.Seen("1845") {
		t.Error("recorded article reported as unseen")
	}
	if idx.Seen("9999") {
		t.Error("unknown article reported as seen")
	}
}

func TestRecord_Replace(t *testing.T) {
	idx := setupTestIndex(t)

	first := Entry{ID: "100", Title: "Old Title", Path: "/old", ArchivedAt: time.Unix(1000, 0)}
	if err := idx.Record(first); err != nil {
		t.Fatalf("Record() returned error: %v", err)
	}

	second := Entry{ID: "100", Title: "New Title", Path: "/new", ArchivedAt: time.Unix(2000, 0)}
	if err := idx.Record(second); err != nil {
		t.Fatalf("Record() of duplicate ID returned error: %v", err)
	}

	entries, err := idx.List()
	if err != nil {
		t.Fatalf("List() returned error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected single entry after replace, got %d", len(entries))
	}
	if entries[0].Title != "New Title" || entries[0].Path != "/new" {
		t.Errorf("replace did not update record: %+v", entries[0])
	}
}

func TestList_Order(t *testing.T) {
	idx := setupTestIndex(t)

	for _, e := range []Entry{
		{ID: "1", Title: "oldest", ArchivedAt: time.Unix(1000, 0)},
		{ID: "2", Title: "newest", ArchivedAt: time.Unix(3000, 0)},
		{ID: "3", Title: "middle", ArchivedAt: time.Unix(2000, 0)},
	} {
		if err := idx.Record(e); err != nil {
			t.Fatalf("Record(%s) returned error: %v", e.ID, err)
		}
	}

	entries, err := idx.List()
	if err != nil {
		t.Fatalf("List() returned error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	want := []string{"newest", "middle", "oldest"}
	for i, title := range want {
		if entries[i].Title != title {
			t.Errorf("entry %d: got %q, want %q", i, entries[i].Title, title)
		}
	}
}

func TestList_FieldRoundTrip(t *testing.T) {
	idx := setupTestIndex(t)

	at := time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC)
	e := Entry{ID: "42", Title: "Заметка", Path: "/out/zametka/zametka.md", ArchivedAt: at}
	if err := idx.Record(e); err != nil {
		t.Fatalf("Record() returned error: %v", err)
	}

	entries, err := idx.List()
	if err != nil {
		t.Fatalf("List() returned error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected single entry, got %d", len(entries))
	}

	got := entries[0]
	if got.ID != e.ID || got.Title != e.Title || got.Path != e.Path {
		t.Errorf("fields did not round-trip: got %+v, want %+v", got, e)
	}
	if !got.ArchivedAt.Equal(at) {
		t.Errorf("timestamp did not round-trip: got %v, want %v", got.ArchivedAt, at)
	}
}

func TestNilIndex(t *testing.T) {
	var idx *Index

	if idx.Seen("1") {
		t.Error("nil index reported article as seen")
	}
	if err := idx.Record(Entry{ID: "1"}); err != nil {
		t.Errorf("nil index Record() returned error: %v", err)
	}
	entries, err := idx.List()
	if err != nil {
		t.Errorf("nil index List() returned error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("nil index List() returned entries: %v", entries)
	}
	if err := idx.Close(); err != nil {
		t.Errorf("nil index Close() returned error: %v", err)
	}
}

func TestOpen_Persistence(t *testing.T) {
	cfg := &config.HistoryConfig{
		Enable: true,
		Path:   filepath.Join(t.TempDir(), "history.db"),
	}
	log := zaptest.NewLogger(t)

	idx, err := Open(cfg, log)
	if err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	if err := idx.Record(Entry{ID: "7", Title: "persisted", ArchivedAt: time.Unix(100, 0)}); err != nil {
		t.Fatalf("Record() returned error: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}

	reopened, err := Open(cfg, log)
	if err != nil {
		t.Fatalf("second Open() returned error: %v", err)
	}
	defer reopened.Close()

	if !reopened.Seen("7") {
		t.Error("record did not survive database reopen")
	}
}
