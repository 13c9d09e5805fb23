package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gridtown/internal/api"
	"gridtown/internal/state"
)

func sampleEntry(at time.Time) CycleEntry {
	return CycleEntry{
		At:        state.Stamp(at),
		Watermark: state.Stamp(at),
		Local: state.Snapshot{
			Persons: []state.Person{{Entity: state.Entity{ID: "p1", X: 1, Y: 2}}},
		},
		Server: api.PullResponse{
			Persons: []state.Person{{Entity: state.Entity{ID: "p1", X: 3, Y: 4}}},
			Objects: []state.Object{{Entity: state.Entity{ID: "o1"}, Type: "box"}},
		},
	}
}

func TestCycleRecorder_WriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	r := NewCycleRecorder(dir, nil)

	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := r.WriteCycle(sampleEntry(at.Add(time.Duration(i) * time.Second))); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "cycles", "cycles-*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("recorded files: %v %v", files, err)
	}
	entries, err := ReadCycles(files[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries: got %d want 3", len(entries))
	}
	if entries[0].Server.Persons[0].X != 3 {
		t.Fatalf("round trip mangled entry: %+v", entries[0])
	}
}

func TestIndex_RecordAndList(t *testing.T) {
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	idx.Record(CycleRow{At: "a", Watermark: "w1", Persons: 2})
	idx.Record(CycleRow{At: "b", Watermark: "w2", Cars: 1})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx2, err := OpenIndex(filepath.Join(t.TempDir(), "other.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx2.Close()
	rows, err := idx2.Cycles(context.Background())
	if err != nil {
		t.Fatalf("cycles: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("fresh db should be empty")
	}
}

func TestIndex_RecordDuringClose(t *testing.T) {
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for n := 0; n < 1000; n++ {
			idx.Record(CycleRow{At: "a", Watermark: "w"})
		}
	}()
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	<-done

	// Records after close are dropped, not panics.
	idx.Record(CycleRow{At: "b"})
}

func TestIndex_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenIndex(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	idx.Record(CycleRow{At: "a", Watermark: "w1", Persons: 1, Objects: 4})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx, err = OpenIndex(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	rows, err := idx.Cycles(context.Background())
	if err != nil {
		t.Fatalf("cycles: %v", err)
	}
	if len(rows) != 1 || rows[0].Objects != 4 {
		t.Fatalf("rows: %+v", rows)
	}
}
