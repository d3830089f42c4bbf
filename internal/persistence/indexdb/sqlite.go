// Package indexdb keeps a queryable sqlite catalog of ingested ticks and
// eras. It is a secondary index: the zstd recordings stay the source of
// truth, so writes are dropped rather than allowed to stall ingestion.
package indexdb

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"civscope.ai/internal/explorer/model"
	"civscope.ai/internal/metrics"
)

const defaultQueue = 4096

type SQLiteIndex struct {
	db *sqlx.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once
	now  func() time.Time

	// mu orders sends on ch against Close closing it.
	mu     sync.RWMutex
	closed bool

	dropTicks atomic.Uint64
	dropEras  atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqEra
)

type req struct {
	kind reqKind

	tick TickRow
	era  EraRow
}

// TickRow summarizes one ingested snapshot.
type TickRow struct {
	Tick          uint64  `db:"tick"`
	Settlements   int     `db:"settlements"`
	Active        int     `db:"active"`
	Civilizations int     `db:"civilizations"`
	TradeRoutes   int     `db:"trade_routes"`
	Population    float64 `db:"population"`
	CurrentEraID  string  `db:"current_era_id"`
	RecordedAt    string  `db:"recorded_at"`
}

// EraRow is the latest known version of an era plus the ticks it was seen at.
type EraRow struct {
	ID            string `db:"id"`
	Title         string `db:"title"`
	EraType       string `db:"era_type"`
	EntryType     string `db:"entry_type"`
	StartTick     uint64 `db:"start_tick"`
	EndTick       uint64 `db:"end_tick"`
	Affected      int    `db:"affected"`
	FirstSeenTick uint64 `db:"first_seen_tick"`
	LastSeenTick  uint64 `db:"last_seen_tick"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate index: %w", err)
	}

	s := &SQLiteIndex{
		db:  db,
		ch:  make(chan req, defaultQueue),
		now: time.Now,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func migrate(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ticks (
		tick INTEGER PRIMARY KEY,
		settlements INTEGER NOT NULL,
		active INTEGER NOT NULL,
		civilizations INTEGER NOT NULL,
		trade_routes INTEGER NOT NULL,
		population REAL NOT NULL,
		current_era_id TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS eras (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		era_type TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		start_tick INTEGER NOT NULL,
		end_tick INTEGER NOT NULL,
		affected INTEGER NOT NULL,
		first_seen_tick INTEGER NOT NULL,
		last_seen_tick INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_eras_start ON eras(start_tick);
	INSERT OR REPLACE INTO meta(key, value) VALUES('schema_version', '1');
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordSnapshot queues a tick row and one row per era the snapshot knows.
// It never blocks.
func (s *SQLiteIndex) RecordSnapshot(snap *model.Snapshot) {
	if s == nil || snap == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	row := TickRow{
		Tick:          snap.Tick,
		Settlements:   len(snap.Settlements),
		Civilizations: len(snap.Civilizations),
		TradeRoutes:   len(snap.Trade),
		CurrentEraID:  snap.Eras.CurrentEraID,
		RecordedAt:    s.now().UTC().Format(time.RFC3339Nano),
	}
	for _, st := range snap.Settlements {
		if st.Active() {
			row.Active++
			row.Population += st.Population
		}
	}
	s.enqueue(req{kind: reqTick, tick: row})

	seen := map[model.EraID]struct{}{}
	for _, list := range [][]model.EraRecord{snap.Eras.Eras, snap.Eras.Milestones, snap.Eras.Entries} {
		for _, e := range list {
			if e.ID == "" {
				continue
			}
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			s.enqueue(req{kind: reqEra, era: EraRow{
				ID:            e.ID,
				Title:         e.Title,
				EraType:       e.Type,
				EntryType:     e.EntryType,
				StartTick:     e.StartTick,
				EndTick:       e.EndTick,
				Affected:      len(e.AffectedSettlementIDs),
				FirstSeenTick: snap.Tick,
				LastSeenTick:  snap.Tick,
			}})
		}
	}
}

// enqueue must be called with mu held for reading.
func (s *SQLiteIndex) enqueue(r req) {
	select {
	case s.ch <- r:
	default:
		// Drop if the indexer falls behind; recordings remain the source of truth.
		switch r.kind {
		case reqTick:
			s.dropTicks.Add(1)
			metrics.IndexDropped.WithLabelValues("tick").Inc()
		case reqEra:
			s.dropEras.Add(1)
			metrics.IndexDropped.WithLabelValues("era").Inc()
		}
	}
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTickTotal uint64 `json:"drop_tick_total"`
	DropEraTotal  uint64 `json:"drop_era_total"`
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTickTotal: s.dropTicks.Load(),
		DropEraTotal:  s.dropEras.Load(),
	}
}

const (
	insertTickSQL = `INSERT OR REPLACE INTO ticks
		(tick, settlements, active, civilizations, trade_routes, population, current_era_id, recorded_at)
		VALUES (:tick, :settlements, :active, :civilizations, :trade_routes, :population, :current_era_id, :recorded_at)`

	upsertEraSQL = `INSERT INTO eras
		(id, title, era_type, entry_type, start_tick, end_tick, affected, first_seen_tick, last_seen_tick)
		VALUES (:id, :title, :era_type, :entry_type, :start_tick, :end_tick, :affected, :first_seen_tick, :last_seen_tick)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			era_type = excluded.era_type,
			entry_type = excluded.entry_type,
			start_tick = excluded.start_tick,
			end_tick = excluded.end_tick,
			affected = excluded.affected,
			first_seen_tick = MIN(eras.first_seen_tick, excluded.first_seen_tick),
			last_seen_tick = MAX(eras.last_seen_tick, excluded.last_seen_tick)`
)

func (s *SQLiteIndex) loop() {
	var (
		tx            *sqlx.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.Beginx()
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		var err error
		switch r.kind {
		case reqTick:
			_, err = tx.NamedExec(insertTickSQL, r.tick)
		case reqEra:
			_, err = tx.NamedExec(upsertEraSQL, r.era)
		}
		if err != nil {
			rollback()
			continue
		}
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}
