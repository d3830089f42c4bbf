package history

import (
	"testing"

	"civscope.ai/internal/explorer/model"
)

func snapAt(tick uint64, pop float64) model.Snapshot {
	return model.Snapshot{
		Tick:        tick,
		Settlements: []model.Settlement{{ID: "1", Population: pop, Members: -1}},
	}
}

func TestStore_InsertSameTickReplaces(t *testing.T) {
	s := New(10)
	if !s.Insert(snapAt(5, 1)) {
		t.Fatalf("first insert should be new")
	}
	if s.Insert(snapAt(5, 2)) {
		t.Fatalf("second insert should replace")
	}
	if s.Len() != 1 {
		t.Fatalf("len=%d want=1", s.Len())
	}
	got, ok := s.Get(5)
	if !ok || got.Settlements[0].Population != 2 {
		t.Fatalf("latest payload should win: %+v", got)
	}
	if ticks := s.Ticks(); len(ticks) != 1 || ticks[0] != 5 {
		t.Fatalf("ticks=%v", ticks)
	}
}

func TestStore_BoundedEviction(t *testing.T) {
	const c = 5
	s := New(c)
	for tick := uint64(1); tick <= c+3; tick++ {
		s.Insert(snapAt(tick*10, 1))
	}
	if s.Len() != c {
		t.Fatalf("len=%d want=%d", s.Len(), c)
	}
	want := []uint64{40, 50, 60, 70, 80}
	got := s.Ticks()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ticks=%v want=%v", got, want)
		}
	}
	if _, ok := s.Get(30); ok {
		t.Fatalf("tick 30 should be evicted")
	}
	if s.Evicted() != 3 {
		t.Fatalf("evicted=%d want=3", s.Evicted())
	}
}

func TestStore_OutOfOrderInsertKeepsIndexSorted(t *testing.T) {
	s := New(3)
	for _, tick := range []uint64{30, 10, 20, 40, 5} {
		s.Insert(snapAt(tick, 1))
	}
	got := s.Ticks()
	want := []uint64{20, 30, 40}
	if len(got) != len(want) {
		t.Fatalf("ticks=%v want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ticks=%v want=%v", got, want)
		}
	}
}

func TestNearestTick(t *testing.T) {
	domain := []uint64{10, 20, 30}
	cases := []struct{ target, want uint64 }{
		{25, 20},
		{5, 10},
		{10, 10},
		{20, 20},
		{30, 30},
		{35, 30},
		{11, 10},
	}
	for _, c := range cases {
		if got := NearestTick(c.target, domain); got != c.want {
			t.Fatalf("NearestTick(%d)=%d want=%d", c.target, got, c.want)
		}
	}
	if got := NearestTick(99, nil); got != 0 {
		t.Fatalf("empty domain sentinel=%d want=0", got)
	}
}

func TestVisibleTicks(t *testing.T) {
	s := New(0)
	for _, tick := range []uint64{10, 20, 30, 40, 50, 60, 70} {
		s.Insert(snapAt(tick, 1))
	}
	if got := s.VisibleTicks(nil); len(got) != 7 {
		t.Fatalf("unfiltered len=%d", len(got))
	}
	got := s.VisibleTicks(&TickRange{Start: 40, End: 60})
	if len(got) != 3 || got[0] != 40 || got[2] != 60 {
		t.Fatalf("filtered=%v", got)
	}
	if got := s.VisibleTicks(&TickRange{Start: 41, End: 49}); len(got) != 0 {
		t.Fatalf("gap range should be empty: %v", got)
	}
}

func TestNextTickAfter(t *testing.T) {
	domain := []uint64{10, 20, 30}
	if next, ok := NextTickAfter(10, domain); !ok || next != 20 {
		t.Fatalf("next(10)=%d,%v", next, ok)
	}
	if next, ok := NextTickAfter(15, domain); !ok || next != 20 {
		t.Fatalf("next(15)=%d,%v", next, ok)
	}
	if _, ok := NextTickAfter(30, domain); ok {
		t.Fatalf("no tick after the end")
	}
	if _, ok := NextTickAfter(0, nil); ok {
		t.Fatalf("empty domain has no next")
	}
}
