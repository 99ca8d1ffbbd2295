package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/graph-crawler/internal/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch results used as the "result" label of graphcrawler_fetches_total
const (
	ResultOK        = "ok"
	ResultTransport = "transport"
	ResultDecode    = "decode"
	ResultService   = "service"
)

// Tracker holds and manages crawl metrics.
// Counters are mirrored into Prometheus collectors registered on the
// registerer given to NewTracker.
type Tracker struct {
	mu               sync.Mutex
	data             storage.Metrics
	totalFetchTimeMs int64
	fetchCount       int

	discovered    prometheus.Counter
	expanded      prometheus.Counter
	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
}

// NewTracker creates a tracker with a fresh run ID.
// A nil registerer leaves the collectors unregistered.
func NewTracker(reg prometheus.Registerer) *Tracker {
	factory := promauto.With(reg)

	return &Tracker{
		data: storage.Metrics{
			RunID:     uuid.NewString(),
			StartTime: time.Now(),
		},
		discovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "graphcrawler_nodes_discovered_total",
			Help: "Labels claimed for the first time",
		}),
		expanded: factory.NewCounter(prometheus.CounterOpts{
			Name: "graphcrawler_nodes_expanded_total",
			Help: "Nodes whose neighbors were requested",
		}),
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "graphcrawler_fetches_total",
			Help: "Neighbor lookups by result",
		}, []string{"result"}),
		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "graphcrawler_fetch_duration_seconds",
			Help:    "Neighbor lookup latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RunID identifies this crawl in exported metrics and results
func (t *Tracker) RunID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data.RunID
}

// SetStrategy records which distribution model the run uses
func (t *Tracker) SetStrategy(strategy storage.Strategy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.Strategy = string(strategy)
}

// IncrementNodesDiscovered increments the discovered nodes counter
func (t *Tracker) IncrementNodesDiscovered() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.NodesDiscovered++
	t.discovered.Inc()
}

// IncrementNodesExpanded increments the expanded nodes counter
func (t *Tracker) IncrementNodesExpanded() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.NodesExpanded++
	t.expanded.Inc()
}

// RecordFetch records one lookup outcome and its duration
func (t *Tracker) RecordFetch(result string, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch result {
	case ResultOK:
		t.data.FetchesSucceeded++
	case ResultTransport:
		t.data.TransportErrors++
	case ResultDecode:
		t.data.DecodeErrors++
	case ResultService:
		t.data.ServiceErrors++
	}
	t.totalFetchTimeMs += duration.Milliseconds()
	t.fetchCount++

	t.fetches.WithLabelValues(result).Inc()
	t.fetchDuration.Observe(duration.Seconds())
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs

	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}

	return snapshot
}

// Finish stamps the end time and termination reason
func (t *Tracker) Finish(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path string) error {
	jsonData, err := json.MarshalIndent(t.GetSnapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress formats current metrics for periodic updates
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Nodes: %d discovered, %d expanded | Fetches: %d ok, %d transport, %d decode, %d service errors",
		t.data.NodesDiscovered,
		t.data.NodesExpanded,
		t.data.FetchesSucceeded,
		t.data.TransportErrors,
		t.data.DecodeErrors,
		t.data.ServiceErrors,
	)
}

// Handler serves the collectors of gatherer in the Prometheus text format
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
