// Package record keeps a compressed journal of ingested state batches so a
// session can be replayed offline.
package record

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"civscope.ai/internal/stateproto"
)

// Segments are hourly: batches-YYYY-MM-DD-HH.jsonl.zst.
const (
	Prefix        = "batches"
	segmentSuffix = ".jsonl.zst"
	segmentHour   = "2006-01-02-15"
)

// maxLine bounds a single journal line; a 450-snapshot batch fits well below it.
const maxLine = 256 << 20

var ErrNoRecording = errors.New("no recording")

type Entry struct {
	Seq        uint64                `json:"seq"`
	RecordedAt time.Time             `json:"recorded_at"`
	Batch      stateproto.StateBatch `json:"batch"`
}

func segmentName(t time.Time) string {
	return Prefix + "-" + t.UTC().Format(segmentHour) + segmentSuffix
}

// segmentTime reports the hour a segment file name covers.
func segmentTime(name string) (time.Time, bool) {
	stamp, ok := strings.CutPrefix(name, Prefix+"-")
	if !ok {
		return time.Time{}, false
	}
	stamp, ok = strings.CutSuffix(stamp, segmentSuffix)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(segmentHour, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Recorder appends entries to the segment of the hour they are recorded in.
// It is safe for concurrent use.
type Recorder struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	seq  uint64
	name string
	f    *os.File
	zw   *zstd.Encoder
	enc  *json.Encoder
}

func NewRecorder(dir string) *Recorder {
	return NewRecorderWithClock(dir, nil)
}

func NewRecorderWithClock(dir string, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{dir: dir, now: now}
}

// Record appends b and returns its sequence number. Each entry is flushed
// as its own zstd block so a reader sees it immediately.
func (r *Recorder) Record(b stateproto.StateBatch) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := r.now().UTC()
	if err := r.segmentLocked(segmentName(at)); err != nil {
		return 0, fmt.Errorf("record batch: %w", err)
	}
	e := Entry{Seq: r.seq + 1, RecordedAt: at, Batch: b}
	if err := r.enc.Encode(e); err != nil {
		return 0, fmt.Errorf("record batch %d: %w", e.Seq, err)
	}
	if err := r.zw.Flush(); err != nil {
		return 0, fmt.Errorf("record batch %d: %w", e.Seq, err)
	}
	r.seq = e.Seq
	return e.Seq, nil
}

func (r *Recorder) segmentLocked(name string) error {
	if name == r.name && r.zw != nil {
		return nil
	}
	if err := r.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(r.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	r.name, r.f, r.zw, r.enc = name, f, zw, json.NewEncoder(zw)
	return nil
}

// closeLocked ends the open segment. Errors from finishing the zstd frame
// and from closing the file are both reported.
func (r *Recorder) closeLocked() error {
	if r.zw == nil {
		return nil
	}
	err := errors.Join(r.zw.Close(), r.f.Close())
	r.name, r.f, r.zw, r.enc = "", nil, nil, nil
	if err != nil {
		return fmt.Errorf("close segment: %w", err)
	}
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

// Segments lists the journal files under dir in chronological order.
func Segments(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoRecording
		}
		return nil, err
	}
	type segment struct {
		path string
		hour time.Time
	}
	var segs []segment
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		hour, ok := segmentTime(e.Name())
		if !ok {
			continue
		}
		segs = append(segs, segment{path: filepath.Join(dir, e.Name()), hour: hour})
	}
	if len(segs) == 0 {
		return nil, ErrNoRecording
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].hour.Before(segs[j].hour) })
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.path
	}
	return out, nil
}

// Reader streams entries across every segment of a recording.
type Reader struct {
	paths []string
	idx   int

	f   *os.File
	dec *zstd.Decoder
	sc  *bufio.Scanner
}

func Open(dir string) (*Reader, error) {
	paths, err := Segments(dir)
	if err != nil {
		return nil, err
	}
	return &Reader{paths: paths}, nil
}

// Next returns io.EOF after the last entry.
func (r *Reader) Next() (Entry, error) {
	for {
		if r.sc == nil {
			if r.idx >= len(r.paths) {
				return Entry{}, io.EOF
			}
			if err := r.openSegment(r.paths[r.idx]); err != nil {
				return Entry{}, err
			}
			r.idx++
		}
		if r.sc.Scan() {
			line := r.sc.Bytes()
			if len(line) == 0 {
				continue
			}
			var e Entry
			if err := json.Unmarshal(line, &e); err != nil {
				return Entry{}, fmt.Errorf("decode entry in %s: %w", r.paths[r.idx-1], err)
			}
			return e, nil
		}
		err := r.sc.Err()
		r.closeSegment()
		if err != nil {
			return Entry{}, fmt.Errorf("read %s: %w", r.paths[r.idx-1], err)
		}
	}
}

func (r *Reader) openSegment(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return err
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 128*1024), maxLine)
	r.f, r.dec, r.sc = f, dec, sc
	return nil
}

func (r *Reader) closeSegment() {
	if r.dec != nil {
		r.dec.Close()
		r.dec = nil
	}
	if r.f != nil {
		_ = r.f.Close()
		r.f = nil
	}
	r.sc = nil
}

func (r *Reader) Close() error {
	r.closeSegment()
	r.idx = len(r.paths)
	return nil
}

// ReadAll loads a whole recording.
func ReadAll(dir string) ([]Entry, error) {
	rd, err := Open(dir)
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	var out []Entry
	for {
		e, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}
