package memory

import (
	"hash/maphash"
	"sync"

	"github.com/alvmarrod/graph-crawler/internal/storage"
)

// Set is the visited set shared by all workers of one crawl.
// TryClaim is its only mutation path.
type Set interface {
	// TryClaim records n.Label and returns true if no caller has claimed it
	// before. Concurrent callers for the same label observe exactly one true.
	TryClaim(n storage.Node) bool

	// Len returns the number of claimed labels
	Len() int

	// Nodes returns a snapshot of the claimed nodes, ordered by depth then label
	Nodes() []storage.Node
}

// NewSet returns a single-lock set when shards <= 1, a striped set otherwise
func NewSet(shards int) Set {
	if shards <= 1 {
		return NewVisitedSet()
	}
	return NewStripedSet(shards)
}

// VisitedSet guards one map with one mutex
type VisitedSet struct {
	mu    sync.Mutex
	nodes map[string]int // label -> depth at claim time
}

// NewVisitedSet creates an empty visited set
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{
		nodes: make(map[string]int),
	}
}

// TryClaim atomically checks and inserts the label
func (vs *VisitedSet) TryClaim(n storage.Node) bool {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.nodes[n.Label]; exists {
		return false
	}
	vs.nodes[n.Label] = n.Depth
	return true
}

// Len returns the number of claimed labels
func (vs *VisitedSet) Len() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return len(vs.nodes)
}

// Nodes returns a sorted snapshot of the set
func (vs *VisitedSet) Nodes() []storage.Node {
	vs.mu.Lock()
	nodes := make([]storage.Node, 0, len(vs.nodes))
	for label, depth := range vs.nodes {
		nodes = append(nodes, storage.Node{Label: label, Depth: depth})
	}
	vs.mu.Unlock()

	storage.SortNodes(nodes)
	return nodes
}

// StripedSet spreads labels over independently locked shards so that claims
// for different labels rarely contend.
type StripedSet struct {
	seed   maphash.Seed
	shards []*VisitedSet
}

// NewStripedSet creates a set with the given number of shards
func NewStripedSet(shards int) *StripedSet {
	if shards < 1 {
		shards = 1
	}
	s := &StripedSet{
		seed:   maphash.MakeSeed(),
		shards: make([]*VisitedSet, shards),
	}
	for i := range s.shards {
		s.shards[i] = NewVisitedSet()
	}
	return s
}

func (s *StripedSet) shard(label string) *VisitedSet {
	h := maphash.String(s.seed, label)
	return s.shards[h%uint64(len(s.shards))]
}

// TryClaim claims the label in the shard that owns it.
// A label always maps to the same shard, so the shard lock alone makes the
// claim atomic.
func (s *StripedSet) TryClaim(n storage.Node) bool {
	return s.shard(n.Label).TryClaim(n)
}

// Len sums the shard sizes
func (s *StripedSet) Len() int {
	total := 0
	for _, sh := range s.shards {
		total += sh.Len()
	}
	return total
}

// Nodes merges the shard snapshots
func (s *StripedSet) Nodes() []storage.Node {
	var nodes []storage.Node
	for _, sh := range s.shards {
		nodes = append(nodes, sh.Nodes()...)
	}
	storage.SortNodes(nodes)
	return nodes
}
