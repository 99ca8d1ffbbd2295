package storage

import (
	"sort"
	"time"
)

// Node is an entity discovered by the crawl.
// Identity is the Label; Depth records the BFS level at which the label was
// first claimed and is not part of its identity.
type Node struct {
	Label string
	Depth int
}

// Strategy names a frontier distribution model
type Strategy string

const (
	// StrategyStatic expands the graph level by level, splitting each level
	// into one contiguous range per worker.
	StrategyStatic Strategy = "static"
	// StrategyDynamic drains a single shared queue with all workers.
	StrategyDynamic Strategy = "dynamic"
)

// Termination reasons recorded on a Result
const (
	ReasonExhausted  = "exhausted"
	ReasonBudget     = "budget"
	ReasonCancelled  = "cancelled"
	ReasonDepthBound = "depth_bound"
	ReasonLevelEmpty = "level_empty"
)

// Result is the frozen outcome of one crawl
type Result struct {
	Strategy   Strategy
	StartLabel string
	MaxDepth   int
	Workers    int

	// Nodes holds every discovered node, ordered by depth. Within a depth the
	// dynamic strategy orders by label and the static strategy keeps the
	// discovery order of Levels.
	Nodes []Node

	// Levels holds the labels of each BFS level in discovery order.
	// Only the static strategy fills it.
	Levels [][]string

	Reason  string
	Elapsed time.Duration
}

// SortNodes orders nodes by depth, then label
func SortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Depth != nodes[j].Depth {
			return nodes[i].Depth < nodes[j].Depth
		}
		return nodes[i].Label < nodes[j].Label
	})
}

// FlattenLevels converts a level sequence into nodes tagged with their level index
func FlattenLevels(levels [][]string) []Node {
	var nodes []Node
	for depth, level := range levels {
		for _, label := range level {
			nodes = append(nodes, Node{Label: label, Depth: depth})
		}
	}
	return nodes
}

// Labels returns the labels of all discovered nodes
func (r *Result) Labels() []string {
	labels := make([]string, len(r.Nodes))
	for i, n := range r.Nodes {
		labels[i] = n.Label
	}
	return labels
}

// Metrics tracks crawl statistics for export on exit
type Metrics struct {
	RunID             string    `json:"run_id"`
	Strategy          string    `json:"strategy"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	NodesDiscovered   int       `json:"nodes_discovered"`
	NodesExpanded     int       `json:"nodes_expanded"`
	FetchesSucceeded  int       `json:"fetches_succeeded"`
	TransportErrors   int       `json:"transport_errors"`
	DecodeErrors      int       `json:"decode_errors"`
	ServiceErrors     int       `json:"service_errors"`
	TotalFetchTimeMs  int64     `json:"total_fetch_time_ms"`
	AvgFetchTimeMs    int64     `json:"avg_fetch_time_ms"`
	TerminationReason string    `json:"termination_reason"`
}
