package crawler

import (
	"context"
	"time"

	"github.com/alvmarrod/graph-crawler/internal/client"
	"github.com/alvmarrod/graph-crawler/internal/memory"
	"github.com/alvmarrod/graph-crawler/internal/metrics"
	"github.com/alvmarrod/graph-crawler/internal/storage"
	"github.com/sirupsen/logrus"
)

// Fetcher looks up the neighbors of one label.
// A Fetcher is owned by a single worker and never shared.
type Fetcher interface {
	Fetch(ctx context.Context, label string) ([]string, error)
}

// FetcherFactory builds the Fetcher owned by worker id
type FetcherFactory func(id int) Fetcher

// worker bundles everything one unit of execution needs.
// Only visited and tracker are shared with other workers.
type worker struct {
	id       int
	fetcher  Fetcher
	visited  memory.Set
	maxDepth int
	tracker  *metrics.Tracker
}

// expand fetches the neighbors of n and emits every neighbor this worker
// claims first. Lookup failures are logged and leave n as a dead end.
func (w *worker) expand(ctx context.Context, n storage.Node, emit func(storage.Node)) {
	logrus.Debugf("Worker %d: expanding %q (depth=%d)", w.id, n.Label, n.Depth)
	w.tracker.IncrementNodesExpanded()

	started := time.Now()
	neighbors, err := w.fetcher.Fetch(ctx, n.Label)
	elapsed := time.Since(started)

	if err != nil {
		kind := client.KindOf(err)
		w.tracker.RecordFetch(kind.String(), elapsed)
		logrus.Warnf("Worker %d: %s failure for %q, treating as dead end: %v", w.id, kind, n.Label, err)
		return
	}
	w.tracker.RecordFetch(metrics.ResultOK, elapsed)

	for _, label := range FilterNeighbors(n.Label, neighbors) {
		next := storage.Node{Label: label, Depth: n.Depth + 1}
		if !w.visited.TryClaim(next) {
			continue
		}
		logrus.Debugf("Worker %d: discovered %q (depth %d->%d)", w.id, label, n.Depth, next.Depth)
		w.tracker.IncrementNodesDiscovered()
		emit(next)
	}
}

// runQueue drains q until it closes.
// Nodes at or past the depth bound, and every node taken after ctx is done,
// are discarded without a fetch.
func (w *worker) runQueue(ctx context.Context, q *Queue) {
	logrus.Debugf("Worker %d started", w.id)

	for {
		n, ok := q.Take()
		if !ok {
			logrus.Debugf("Worker %d: queue closed, exiting", w.id)
			return
		}

		if ctx.Err() != nil {
			// raise the signal first: a cancelled drain must never register as exhaustion
			q.SignalDone()
			continue
		}
		if n.Depth >= w.maxDepth {
			continue
		}

		w.expand(ctx, n, q.Offer)
	}
}

// runRange expands the labels of one static partition, all at depth
func (w *worker) runRange(ctx context.Context, labels []string, depth int, emit func(storage.Node)) {
	logrus.Debugf("Worker %d: expanding %d labels at depth %d", w.id, len(labels), depth)

	for _, label := range labels {
		w.expand(ctx, storage.Node{Label: label, Depth: depth}, emit)
	}
}
