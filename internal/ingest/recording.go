package ingest

import (
	"context"
	"sync"

	"civscope.ai/internal/persistence/record"
	"civscope.ai/internal/stateproto"
)

// RecordingSource plays a recording back one entry per Fetch. Once the
// recording is exhausted it keeps answering with an empty batch.
type RecordingSource struct {
	mu      sync.Mutex
	entries []record.Entry
	pos     int
	latest  uint64
}

func NewRecordingSource(dir string) (*RecordingSource, error) {
	entries, err := record.ReadAll(dir)
	if err != nil {
		return nil, err
	}
	return NewRecordingSourceFromEntries(entries), nil
}

func NewRecordingSourceFromEntries(entries []record.Entry) *RecordingSource {
	s := &RecordingSource{entries: entries}
	for _, e := range entries {
		if e.Batch.LatestTick > s.latest {
			s.latest = e.Batch.LatestTick
		}
	}
	return s
}

func (s *RecordingSource) Fetch(ctx context.Context, since *uint64) (stateproto.StateBatch, error) {
	if err := ctx.Err(); err != nil {
		return stateproto.StateBatch{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.entries) {
		return stateproto.StateBatch{CurrentTick: s.latest, LatestTick: s.latest}, nil
	}
	b := s.entries[s.pos].Batch
	s.pos++
	if since != nil {
		kept := make([]stateproto.Snapshot, 0, len(b.Snapshots))
		for _, snap := range b.Snapshots {
			if snap.Tick > *since {
				kept = append(kept, snap)
			}
		}
		b.Snapshots = kept
	}
	return b, nil
}

func (s *RecordingSource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries) - s.pos
}

func (s *RecordingSource) Len() int { return len(s.entries) }
