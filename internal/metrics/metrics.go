// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll results.
const (
	PollOK      = "ok"
	PollError   = "error"
	PollSkipped = "skipped"
)

var (
	Polls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civscope_ingest_polls_total",
		Help: "Poll task runs by result",
	}, []string{"result"})

	SnapshotsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civscope_ingest_snapshots_total",
		Help: "Snapshots inserted into the history store",
	})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "civscope_ingest_fetch_duration_seconds",
		Help:    "Duration of state batch fetches",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	HistorySize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "civscope_history_size",
		Help: "Snapshots currently retained",
	})

	HistoryEvicted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "civscope_history_evicted",
		Help: "Snapshots evicted since start",
	})

	FrameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "civscope_frame_compute_duration_seconds",
		Help:    "Duration of frame recomputation",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
	})

	FramesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civscope_frames_published_total",
		Help: "Frames handed to subscribers",
	})

	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civscope_frames_dropped_total",
		Help: "Frames replaced before a slow subscriber read them",
	})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "civscope_frame_subscribers",
		Help: "Connected frame subscribers",
	})

	Intents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civscope_intents_total",
		Help: "Control intents by action and result code",
	}, []string{"action", "code"})

	IndexDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civscope_index_dropped_total",
		Help: "Index writes dropped because the queue was full",
	}, []string{"kind"})

	RecordErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civscope_record_errors_total",
		Help: "Batches the recorder failed to write",
	})
)

func Handler() http.Handler { return promhttp.Handler() }
