package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alvmarrod/graph-crawler/internal/memory"
	"github.com/alvmarrod/graph-crawler/internal/metrics"
	"github.com/alvmarrod/graph-crawler/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyStart is returned when Crawl is given an empty start label
var ErrEmptyStart = errors.New("start label must not be empty")

// Options configures a Crawler
type Options struct {
	Strategy storage.Strategy
	MaxDepth int
	Workers  int

	// Budget caps the wall-clock time of a dynamic crawl. Zero means the
	// crawl runs until the frontier is exhausted.
	Budget time.Duration

	// VisitedShards selects the visited set: 1 for a single lock, more for
	// a lock-striped set.
	VisitedShards int

	// ProgressInterval is the period of the progress log line. Zero uses
	// ten seconds.
	ProgressInterval time.Duration
}

// Crawler orchestrates a breadth-first crawl over a pool of workers
type Crawler struct {
	opts     Options
	fetchers []Fetcher
	tracker  *metrics.Tracker

	// fetchers are confined to the workers of one crawl at a time
	mu sync.Mutex
}

// NewCrawler creates a crawler and one Fetcher per worker
func NewCrawler(opts Options, newFetcher FetcherFactory, tracker *metrics.Tracker) (*Crawler, error) {
	switch opts.Strategy {
	case storage.StrategyStatic, storage.StrategyDynamic:
	default:
		return nil, fmt.Errorf("unknown strategy %q", opts.Strategy)
	}
	if opts.MaxDepth < 0 {
		return nil, fmt.Errorf("max depth must be >= 0, got %d", opts.MaxDepth)
	}
	if opts.Workers < 1 {
		return nil, fmt.Errorf("workers must be >= 1, got %d", opts.Workers)
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 10 * time.Second
	}
	if tracker == nil {
		tracker = metrics.NewTracker(nil)
	}

	fetchers := make([]Fetcher, opts.Workers)
	for i := range fetchers {
		fetchers[i] = newFetcher(i + 1)
	}

	return &Crawler{
		opts:     opts,
		fetchers: fetchers,
		tracker:  tracker,
	}, nil
}

// Crawl discovers every node within the depth bound of start.
// Lookup failures never fail the crawl; the returned error only reports
// invalid input.
func (c *Crawler) Crawl(ctx context.Context, start string) (*storage.Result, error) {
	if start == "" {
		return nil, ErrEmptyStart
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	visited := memory.NewSet(c.opts.VisitedShards)
	workers := make([]*worker, len(c.fetchers))
	for i, f := range c.fetchers {
		workers[i] = &worker{
			id:       i + 1,
			fetcher:  f,
			visited:  visited,
			maxDepth: c.opts.MaxDepth,
			tracker:  c.tracker,
		}
	}

	c.tracker.SetStrategy(c.opts.Strategy)
	logrus.Infof("Starting %s crawl from %q: depth=%d, workers=%d", c.opts.Strategy, start, c.opts.MaxDepth, len(workers))

	res := &storage.Result{
		Strategy:   c.opts.Strategy,
		StartLabel: start,
		MaxDepth:   c.opts.MaxDepth,
		Workers:    len(workers),
	}
	began := time.Now()

	// the start node is claimed before any worker runs
	root := storage.Node{Label: start, Depth: 0}
	visited.TryClaim(root)
	c.tracker.IncrementNodesDiscovered()

	switch c.opts.Strategy {
	case storage.StrategyDynamic:
		res.Reason = c.crawlDynamic(ctx, root, workers)
		res.Nodes = visited.Nodes()
	default:
		levels, reason, err := c.crawlStatic(ctx, root, workers)
		if err != nil {
			return nil, err
		}
		res.Levels = levels
		res.Nodes = storage.FlattenLevels(levels)
		res.Reason = reason
	}

	res.Elapsed = time.Since(began)
	c.tracker.Finish(res.Reason)
	logrus.Infof("Crawl finished (%s): %d nodes in %v", res.Reason, len(res.Nodes), res.Elapsed)

	return res, nil
}

// crawlDynamic runs every worker against one shared queue and returns the
// termination reason.
func (c *Crawler) crawlDynamic(ctx context.Context, root storage.Node, workers []*worker) string {
	q := NewQueue(len(workers))
	q.Offer(root)

	crawlCtx := ctx
	if c.opts.Budget > 0 {
		var cancel context.CancelFunc
		crawlCtx, cancel = context.WithTimeout(ctx, c.opts.Budget)
		defer cancel()
	}
	// wakes workers blocked on an empty queue
	stop := context.AfterFunc(crawlCtx, q.SignalDone)
	defer stop()

	stopProgress := c.logProgress(func() string {
		return fmt.Sprintf("queue %s, %d queued", q.State(), q.Size())
	})
	defer stopProgress()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.runQueue(crawlCtx, q)
		}()
	}
	wg.Wait()

	switch {
	case q.Exhausted():
		return storage.ReasonExhausted
	case ctx.Err() != nil:
		return storage.ReasonCancelled
	default:
		return storage.ReasonBudget
	}
}

// levelBuffer collects the next level while workers expand the current one
type levelBuffer struct {
	mu     sync.Mutex
	labels []string
}

func (b *levelBuffer) add(n storage.Node) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.labels = append(b.labels, n.Label)
}

// crawlStatic expands one level at a time, one worker per partition range,
// and joins all of them before moving to the next level. Cancellation is
// observed between levels only.
func (c *Crawler) crawlStatic(ctx context.Context, root storage.Node, workers []*worker) ([][]string, string, error) {
	levels := [][]string{{root.Label}}
	levelCtx := context.WithoutCancel(ctx)

	stopProgress := c.logProgress(nil)
	defer stopProgress()

	for d := 0; d < c.opts.MaxDepth; d++ {
		if ctx.Err() != nil {
			return levels, storage.ReasonCancelled, nil
		}

		current := levels[d]
		next := &levelBuffer{}
		ranges := Partition(len(current), len(workers))
		logrus.Debugf("Starting level %d: %d labels over %d workers", d, len(current), len(ranges))

		var g errgroup.Group
		for i, r := range ranges {
			w := workers[i]
			labels := current[r.Start:r.End]
			g.Go(func() error {
				w.runRange(levelCtx, labels, d, next.add)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, "", fmt.Errorf("level %d: %w", d, err)
		}

		if len(next.labels) == 0 {
			return levels, storage.ReasonLevelEmpty, nil
		}
		levels = append(levels, next.labels)
	}

	return levels, storage.ReasonDepthBound, nil
}

// logProgress logs tracker progress periodically until the returned func is
// called. A non-nil status is appended to each line.
func (c *Crawler) logProgress(status func() string) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.opts.ProgressInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				line := c.tracker.LogProgress()
				if status != nil {
					line += " | " + status()
				}
				logrus.Info(line)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}
