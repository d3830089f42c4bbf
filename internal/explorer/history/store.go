// Package history is the bounded, tick-ordered snapshot cache.
//
// The store is owned by the engine loop and is not safe for concurrent use.
package history

import (
	"sort"

	"civscope.ai/internal/explorer/model"
)

const DefaultMaxHistory = 1500

// TickRange is an inclusive [Start, End] filter.
type TickRange struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

func (r TickRange) Contains(t uint64) bool { return t >= r.Start && t <= r.End }

type Store struct {
	max   int
	ticks []uint64
	snaps map[uint64]*model.Snapshot
	trend map[uint64]TrendPoint

	evicted uint64
}

func New(maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{
		max:   maxHistory,
		snaps: make(map[uint64]*model.Snapshot, maxHistory),
		trend: make(map[uint64]TrendPoint, maxHistory),
	}
}

// Insert stores snap under its tick. A present tick is replaced in place;
// a new tick is placed at its sorted position and, past capacity, the
// smallest tick is evicted. It reports whether the tick was new.
func (s *Store) Insert(snap model.Snapshot) bool {
	v := snap
	s.trend[snap.Tick] = summarize(&v)
	if _, ok := s.snaps[snap.Tick]; ok {
		s.snaps[snap.Tick] = &v
		return false
	}
	i := sort.Search(len(s.ticks), func(i int) bool { return s.ticks[i] >= snap.Tick })
	s.ticks = append(s.ticks, 0)
	copy(s.ticks[i+1:], s.ticks[i:])
	s.ticks[i] = snap.Tick
	s.snaps[snap.Tick] = &v

	for len(s.ticks) > s.max {
		oldest := s.ticks[0]
		s.ticks = s.ticks[1:]
		delete(s.snaps, oldest)
		delete(s.trend, oldest)
		s.evicted++
	}
	return true
}

func (s *Store) Get(tick uint64) (*model.Snapshot, bool) {
	v, ok := s.snaps[tick]
	return v, ok
}

func (s *Store) Len() int        { return len(s.ticks) }
func (s *Store) Cap() int        { return s.max }
func (s *Store) Evicted() uint64 { return s.evicted }

// Ticks returns a copy of the full ascending index.
func (s *Store) Ticks() []uint64 {
	out := make([]uint64, len(s.ticks))
	copy(out, s.ticks)
	return out
}

// Latest returns the greatest stored tick, or 0 when empty.
func (s *Store) Latest() uint64 {
	if len(s.ticks) == 0 {
		return 0
	}
	return s.ticks[len(s.ticks)-1]
}

func (s *Store) First() uint64 {
	if len(s.ticks) == 0 {
		return 0
	}
	return s.ticks[0]
}

// VisibleTicks returns the index restricted to filter. With a nil filter it
// returns the full index; the result must not be modified.
func (s *Store) VisibleTicks(filter *TickRange) []uint64 {
	if filter == nil {
		return s.ticks
	}
	lo := sort.Search(len(s.ticks), func(i int) bool { return s.ticks[i] >= filter.Start })
	hi := sort.Search(len(s.ticks), func(i int) bool { return s.ticks[i] > filter.End })
	if lo >= hi {
		return nil
	}
	return s.ticks[lo:hi]
}

// NearestTick resolves target against an ascending domain. Empty domains
// yield 0; targets outside the domain clamp to its ends; otherwise the exact
// tick or the greatest tick below target.
func NearestTick(target uint64, domain []uint64) uint64 {
	n := len(domain)
	if n == 0 {
		return 0
	}
	if target <= domain[0] {
		return domain[0]
	}
	if target >= domain[n-1] {
		return domain[n-1]
	}
	i := sort.Search(n, func(i int) bool { return domain[i] >= target })
	if domain[i] == target {
		return target
	}
	return domain[i-1]
}

// NextTickAfter returns the first domain tick strictly greater than tick.
func NextTickAfter(tick uint64, domain []uint64) (uint64, bool) {
	i := sort.Search(len(domain), func(i int) bool { return domain[i] > tick })
	if i == len(domain) {
		return 0, false
	}
	return domain[i], true
}

// Bounds returns the first and last tick of domain.
func Bounds(domain []uint64) (first, last uint64, ok bool) {
	if len(domain) == 0 {
		return 0, 0, false
	}
	return domain[0], domain[len(domain)-1], true
}
