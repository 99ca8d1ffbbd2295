package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/alvmarrod/graph-crawler/internal/config"
	"github.com/alvmarrod/graph-crawler/internal/metrics"
	"github.com/alvmarrod/graph-crawler/internal/storage"
	"github.com/sirupsen/logrus"
)

// printResult writes the discovered nodes, grouped by level for the static
// strategy, followed by the elapsed time
func printResult(w io.Writer, res *storage.Result) error {
	bw := bufio.NewWriter(w)

	if res.Levels != nil {
		for depth, level := range res.Levels {
			fmt.Fprintf(bw, "Level %d:\n", depth)
			for _, label := range level {
				fmt.Fprintf(bw, "- %s\n", label)
			}
			fmt.Fprintf(bw, "%d\n", len(level))
		}
	} else {
		for _, n := range res.Nodes {
			fmt.Fprintf(bw, "- %s\n", n.Label)
		}
	}

	fmt.Fprintf(bw, "Total: %d nodes\n", len(res.Nodes))
	fmt.Fprintf(bw, "Time to crawl: %.3fs\n", res.Elapsed.Seconds())

	return bw.Flush()
}

// exportResult writes the optional metrics file and SQLite export.
// Failures are logged; the crawl itself already succeeded.
func exportResult(cfg *config.Config, tracker *metrics.Tracker, res *storage.Result) {
	if cfg.MetricsPath != "" {
		if err := tracker.WriteToFile(cfg.MetricsPath); err != nil {
			logrus.Errorf("Failed to write metrics: %v", err)
		} else {
			logrus.Infof("Metrics written to %s", cfg.MetricsPath)
		}
	}

	if cfg.DBPath == "" {
		return
	}

	store, err := storage.NewStorage(cfg.DBPath)
	if err != nil {
		logrus.Errorf("Failed to initialize storage: %v", err)
		return
	}
	defer store.Close()

	if err := store.SaveResult(tracker.RunID(), res); err != nil {
		logrus.Errorf("Failed to export result: %v", err)
		return
	}
	logrus.Infof("Result exported to %s (run %s)", cfg.DBPath, tracker.RunID())
}
