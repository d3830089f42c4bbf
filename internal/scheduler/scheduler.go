// Package scheduler runs named periodic tasks on a single goroutine.
//
// All methods must be called from the goroutine that drives the scheduler
// (either Run or a caller stepping RunDue on a virtual clock). Tasks may
// register and cancel tasks, themselves included, while they run.
package scheduler

import (
	"context"
	"sort"
	"time"
)

type Task func(now time.Time)

type entry struct {
	name     string
	interval time.Duration
	next     time.Time
	fn       Task
	seq      uint64
	gen      uint64
}

type Scheduler struct {
	now   func() time.Time
	tasks map[string]*entry
	seq   uint64
	gen   uint64
}

// New returns a scheduler using clock, or time.Now when clock is nil.
func New(clock func() time.Time) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{now: clock, tasks: map[string]*entry{}}
}

func (s *Scheduler) Now() time.Time { return s.now() }

// Every registers fn to run every interval, first at now+interval. A task
// already registered under name is replaced.
func (s *Scheduler) Every(name string, interval time.Duration, fn Task) {
	if interval <= 0 {
		interval = time.Millisecond
	}
	s.seq++
	s.gen++
	s.tasks[name] = &entry{
		name:     name,
		interval: interval,
		next:     s.now().Add(interval),
		fn:       fn,
		seq:      s.seq,
		gen:      s.gen,
	}
}

// Cancel removes the named task. It is a no-op for unknown names.
func (s *Scheduler) Cancel(name string) {
	delete(s.tasks, name)
}

func (s *Scheduler) Active(name string) bool {
	_, ok := s.tasks[name]
	return ok
}

func (s *Scheduler) Len() int { return len(s.tasks) }

// Next returns the earliest deadline among registered tasks.
func (s *Scheduler) Next() (time.Time, bool) {
	var best time.Time
	found := false
	for _, e := range s.tasks {
		if !found || e.next.Before(best) {
			best = e.next
			found = true
		}
	}
	return best, found
}

// RunDue runs every task whose deadline is at or before now, once each, in
// deadline then registration order, and reschedules it at now+interval.
// Tasks registered during the pass wait for the next pass; tasks cancelled
// or replaced during the pass are skipped.
func (s *Scheduler) RunDue(now time.Time) int {
	due := make([]*entry, 0, len(s.tasks))
	for _, e := range s.tasks {
		if !e.next.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].next.Equal(due[j].next) {
			return due[i].next.Before(due[j].next)
		}
		return due[i].seq < due[j].seq
	})
	ran := 0
	for _, e := range due {
		cur, ok := s.tasks[e.name]
		if !ok || cur.gen != e.gen {
			continue
		}
		e.next = now.Add(e.interval)
		e.fn(now)
		ran++
	}
	return ran
}

// Run drives the scheduler on the wall clock until ctx is done. Functions
// received on inbox run on the same goroutine between tasks.
func (s *Scheduler) Run(ctx context.Context, inbox <-chan func()) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := time.Hour
		if next, ok := s.Next(); ok {
			wait = next.Sub(s.now())
			if wait < 0 {
				wait = 0
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn, ok := <-inbox:
			if !ok {
				inbox = nil
				continue
			}
			fn()
		case <-timer.C:
			s.RunDue(s.now())
		}
	}
}
