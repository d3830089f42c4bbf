// Package ingest fetches state batches and turns them into canonical
// snapshots.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"civscope.ai/internal/stateproto"
)

var (
	ErrStatus = errors.New("unexpected status")
	ErrSchema = errors.New("batch failed schema validation")
)

// Source yields the batch of snapshots newer than since (all retained
// snapshots when since is nil).
type Source interface {
	Fetch(ctx context.Context, since *uint64) (stateproto.StateBatch, error)
}

const (
	DefaultTimeout = 5 * time.Second
	maxBody        = 64 << 20
)

// HTTPSource polls GET {base}/api/state.
type HTTPSource struct {
	base    string
	client  *http.Client
	timeout time.Duration
}

func NewHTTPSource(baseURL string, timeout time.Duration, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPSource{
		base:    strings.TrimRight(baseURL, "/"),
		client:  client,
		timeout: timeout,
	}
}

func (s *HTTPSource) URL(since *uint64) string {
	u := s.base + "/api/state"
	if since != nil {
		u += "?" + url.Values{"since": []string{strconv.FormatUint(*since, 10)}}.Encode()
	}
	return u
}

func (s *HTTPSource) Fetch(ctx context.Context, since *uint64) (stateproto.StateBatch, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(since), nil)
	if err != nil {
		return stateproto.StateBatch{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return stateproto.StateBatch{}, fmt.Errorf("fetch state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return stateproto.StateBatch{}, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return stateproto.StateBatch{}, fmt.Errorf("read state: %w", err)
	}
	if err := stateproto.Validate(raw); err != nil {
		return stateproto.StateBatch{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return stateproto.DecodeBatch(raw)
}

// Tap calls fn with every batch src returns successfully. fn runs on the
// fetching goroutine.
func Tap(src Source, fn func(stateproto.StateBatch)) Source {
	return tapSource{src: src, fn: fn}
}

type tapSource struct {
	src Source
	fn  func(stateproto.StateBatch)
}

func (t tapSource) Fetch(ctx context.Context, since *uint64) (stateproto.StateBatch, error) {
	b, err := t.src.Fetch(ctx, since)
	if err == nil && t.fn != nil {
		t.fn(b)
	}
	return b, err
}
