package crawler

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errLookup = errors.New("lookup failed")

// fakeGraph answers lookups from an adjacency map and records every call
type fakeGraph struct {
	mu       sync.Mutex
	edges    map[string][]string
	err      error
	delay    time.Duration
	generate func(label string) []string
	onFetch  func(label string)

	calls    map[string]int
	byWorker map[int][]string
}

func newFakeGraph(edges map[string][]string) *fakeGraph {
	return &fakeGraph{
		edges:    edges,
		calls:    make(map[string]int),
		byWorker: make(map[int][]string),
	}
}

func (g *fakeGraph) factory() FetcherFactory {
	return func(id int) Fetcher {
		return &fakeFetcher{id: id, graph: g}
	}
}

func (g *fakeGraph) callCount(label string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[label]
}

func (g *fakeGraph) totalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, n := range g.calls {
		total += n
	}
	return total
}

func (g *fakeGraph) maxCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	most := 0
	for _, n := range g.calls {
		most = max(most, n)
	}
	return most
}

func (g *fakeGraph) workerCalls() map[int][]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[int][]string, len(g.byWorker))
	for id, labels := range g.byWorker {
		out[id] = append([]string(nil), labels...)
	}
	return out
}

// fakeFetcher is the per-worker handle onto a fakeGraph
type fakeFetcher struct {
	id    int
	graph *fakeGraph
}

func (f *fakeFetcher) Fetch(ctx context.Context, label string) ([]string, error) {
	g := f.graph

	g.mu.Lock()
	g.calls[label]++
	g.byWorker[f.id] = append(g.byWorker[f.id], label)
	neighbors := g.edges[label]
	if g.generate != nil {
		neighbors = g.generate(label)
	}
	failure, delay, onFetch := g.err, g.delay, g.onFetch
	g.mu.Unlock()

	if onFetch != nil {
		onFetch(label)
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if failure != nil {
		return nil, failure
	}
	return neighbors, nil
}
