package indexdb

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"civscope.ai/internal/explorer/model"
)

func snap(tick uint64, eraEnd uint64) *model.Snapshot {
	return &model.Snapshot{
		Tick: tick,
		Settlements: []model.Settlement{
			{ID: "1", Population: 30, Members: -1},
			{ID: "2", Population: 12, Members: -1},
			{ID: "3", Population: 0, Members: -1},
		},
		Civilizations: []model.Civilization{{ID: "A"}},
		Trade:         []model.TradeRoute{{From: "1", To: "2"}},
		Eras: model.EraHistory{
			CurrentEraID: "e1",
			Eras: []model.EraRecord{{
				ID: "e1", Title: "Bronze", EntryType: model.EntryEra,
				StartTick: 5, EndTick: eraEnd,
				AffectedSettlementIDs: []model.SettlementID{"1", "2"},
			}},
			Milestones: []model.EraRecord{{ID: "m1", Title: "First city", EntryType: model.EntryMilestone, StartTick: 7, EndTick: 7}},
		},
	}
}

func TestSQLiteIndex_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "civscope.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordSnapshot(snap(10, 10))
	idx.RecordSnapshot(snap(20, 18))
	idx.RecordSnapshot(snap(15, 12))
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()

	cov, err := idx.Coverage(ctx)
	if err != nil || cov.Count != 3 || cov.First != 10 || cov.Last != 20 {
		t.Fatalf("coverage=%+v err=%v", cov, err)
	}

	ticks, err := idx.Ticks(ctx, 11, 20)
	if err != nil || len(ticks) != 2 || ticks[0].Tick != 15 {
		t.Fatalf("ticks=%+v err=%v", ticks, err)
	}
	if ticks[1].Active != 2 || ticks[1].Population != 42 || ticks[1].CurrentEraID != "e1" {
		t.Fatalf("tick row=%+v", ticks[1])
	}

	eras, err := idx.Eras(ctx)
	if err != nil || len(eras) != 2 || eras[0].ID != "e1" || eras[1].ID != "m1" {
		t.Fatalf("eras=%+v err=%v", eras, err)
	}
	e1 := eras[0]
	// The last write wins for attributes; seen ticks widen.
	if e1.EndTick != 12 || e1.FirstSeenTick != 10 || e1.LastSeenTick != 20 || e1.Affected != 2 {
		t.Fatalf("e1=%+v", e1)
	}

	if _, ok, err := idx.Era(ctx, "nope"); ok || err != nil {
		t.Fatalf("missing era ok=%v err=%v", ok, err)
	}
	if m1, ok, err := idx.Era(ctx, "m1"); !ok || err != nil || m1.EntryType != model.EntryMilestone {
		t.Fatalf("m1=%+v ok=%v err=%v", m1, ok, err)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1), now: time.Now}
	s.ch <- req{kind: reqTick}

	s.RecordSnapshot(snap(1, 1))

	st := s.Stats()
	if st.DropTickTotal != 1 || st.DropEraTotal != 2 {
		t.Fatalf("drops=%+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilAndClosedAreNoops(t *testing.T) {
	var s *SQLiteIndex
	s.RecordSnapshot(snap(1, 1))
	if s.Stats() != (Stats{}) {
		t.Fatalf("nil stats should be zero")
	}

	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "i.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	_ = idx.Close()
	idx.RecordSnapshot(snap(1, 1))
	if err := idx.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("empty path should fail")
	}
}

func TestSQLiteIndex_RecordRacingClose(t *testing.T) {
	for round := 0; round < 20; round++ {
		idx, err := OpenSQLite(filepath.Join(t.TempDir(), "i.sqlite"))
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		var wg sync.WaitGroup
		start := make(chan struct{})
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				<-start
				for i := 0; i < 200; i++ {
					idx.RecordSnapshot(snap(uint64(w*1000+i), 1))
				}
			}(w)
		}
		close(start)
		if err := idx.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		wg.Wait()
	}
}
