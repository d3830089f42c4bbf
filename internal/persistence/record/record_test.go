package record

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"civscope.ai/internal/stateproto"
)

func batchAt(tick uint64) stateproto.StateBatch {
	return stateproto.StateBatch{
		CurrentTick: tick,
		LatestTick:  tick,
		Snapshots: []stateproto.Snapshot{{
			Tick:        tick,
			Settlements: []stateproto.Settlement{{ID: "1", Population: 3}},
		}},
	}
}

func TestRecorder_RoundTripAcrossSegments(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	r := NewRecorderWithClock(dir, func() time.Time { return now })

	for i, tick := range []uint64{10, 20, 30} {
		if i == 2 {
			now = now.Add(2 * time.Minute)
		}
		seq, err := r.Record(batchAt(tick))
		if err != nil {
			t.Fatalf("record %d: %v", tick, err)
		}
		if seq != uint64(i+1) {
			t.Fatalf("seq=%d want=%d", seq, i+1)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	segs, err := Segments(dir)
	if err != nil {
		t.Fatalf("segments: %v", err)
	}
	if len(segs) != 2 || filepath.Base(segs[0]) != "batches-2026-03-01-10.jsonl.zst" {
		t.Fatalf("segments=%v", segs)
	}

	entries, err := ReadAll(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries=%d want=3", len(entries))
	}
	for i, want := range []uint64{10, 20, 30} {
		if entries[i].Batch.LatestTick != want || entries[i].Seq != uint64(i+1) {
			t.Fatalf("entry %d=%+v", i, entries[i])
		}
	}
	if entries[0].Batch.Snapshots[0].Settlements[0].ID != "1" {
		t.Fatalf("settlement id lost")
	}
}

func TestSegments_NoRecording(t *testing.T) {
	dir := t.TempDir()
	if _, err := Segments(dir); !errors.Is(err, ErrNoRecording) {
		t.Fatalf("empty dir err=%v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(dir); !errors.Is(err, ErrNoRecording) {
		t.Fatalf("unrelated files err=%v", err)
	}
	if _, err := ReadAll(filepath.Join(dir, "missing")); !errors.Is(err, ErrNoRecording) {
		t.Fatalf("missing dir err=%v", err)
	}
}

func TestSegments_ChronologicalAndNameChecked(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"batches-2026-03-02-00.jsonl.zst",
		"batches-2026-03-01-23.jsonl.zst",
		"batches-latest.jsonl.zst",
		"batches-2026-03-01-24.jsonl.zst",
		"events-2026-03-01-10.jsonl.zst",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	segs, err := Segments(dir)
	if err != nil {
		t.Fatalf("segments: %v", err)
	}
	if len(segs) != 2 || filepath.Base(segs[0]) != "batches-2026-03-01-23.jsonl.zst" ||
		filepath.Base(segs[1]) != "batches-2026-03-02-00.jsonl.zst" {
		t.Fatalf("segments=%v", segs)
	}
}

func TestRecorder_SegmentNameMatchesReader(t *testing.T) {
	at := time.Date(2026, 7, 4, 5, 30, 0, 0, time.FixedZone("X", 3*3600))
	name := segmentName(at)
	if name != "batches-2026-07-04-02.jsonl.zst" {
		t.Fatalf("name=%s", name)
	}
	hour, ok := segmentTime(name)
	if !ok || !hour.Equal(time.Date(2026, 7, 4, 2, 0, 0, 0, time.UTC)) {
		t.Fatalf("hour=%v ok=%v", hour, ok)
	}
}

func TestRecorder_CloseReportsSegmentErrors(t *testing.T) {
	r := NewRecorder(t.TempDir())
	if _, err := r.Record(batchAt(1)); err != nil {
		t.Fatalf("record: %v", err)
	}
	_ = r.f.Close()
	if err := r.Close(); err == nil {
		t.Fatalf("expected close error once the segment file is gone")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestRecorder_ReopensAfterClose(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := NewRecorderWithClock(dir, func() time.Time { return now })
	if _, err := r.Record(batchAt(1)); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	seq, err := r.Record(batchAt(2))
	if err != nil {
		t.Fatal(err)
	}
	if seq != 2 {
		t.Fatalf("seq=%d want=2", seq)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	entries, err := ReadAll(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 2 || entries[1].Batch.LatestTick != 2 {
		t.Fatalf("entries=%+v", entries)
	}
}
