package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alvmarrod/graph-crawler/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lookupServer serves a small fixed graph: A -> B, C; B -> D; C -> D
func lookupServer(t *testing.T) *httptest.Server {
	t.Helper()
	edges := map[string][]string{
		"A": {"B", "C"},
		"B": {"D", "A"},
		"C": {"D"},
		"D": {"E"},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		label := strings.TrimPrefix(r.URL.Path, "/neighbors/")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"neighbors": edges[label]})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"too few", []string{"A", "2"}, "expected 3 arguments"},
		{"too many", []string{"A", "2", "3", "4"}, "expected 3 arguments"},
		{"depth not a number", []string{"A", "two", "3"}, "depth must be an integer"},
		{"negative depth", []string{"A", "-1", "3"}, "depth must be >= 0"},
		{"workers not a number", []string{"A", "2", "x"}, "worker count must be an integer"},
		{"zero workers", []string{"A", "2", "0"}, "worker count must be >= 1"},
		{"negative workers", []string{"A", "2", "-4"}, "worker count must be >= 1"},
		{"negative depth after flags", []string{"-s", "dynamic", "A", "-1", "3"}, "depth must be >= 0"},
		{"flag after positionals", []string{"A", "2", "3", "--debug"}, "expected 3 arguments"},
		{"empty start", []string{"", "2", "3"}, "start label must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrArgument)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, out)
		})
	}
}

func TestInvalidStrategyFlag(t *testing.T) {
	_, err := execute(t, "--strategy", "bfs", "A", "2", "2")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrArgument)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestStaticRunPrintsLevels(t *testing.T) {
	srv := lookupServer(t)

	out, err := execute(t, "--strategy", "static", "--endpoint", srv.URL+"/neighbors", "A", "2", "3")
	require.NoError(t, err)

	want := []string{
		"Level 0:\n- A\n1\n",
		"Level 1:\n- B\n- C\n2\n",
		"Level 2:\n- D\n1\n",
		"Total: 4 nodes\n",
		"Time to crawl: ",
	}
	for _, w := range want {
		assert.Contains(t, out, w)
	}
	assert.NotContains(t, out, "- E")
}

func TestDynamicRunPrintsNodes(t *testing.T) {
	srv := lookupServer(t)

	out, err := execute(t, "-s", "dynamic", "--endpoint", srv.URL+"/neighbors", "A", "2", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "- A\n- B\n- C\n- D\n")
	assert.Contains(t, out, "Total: 4 nodes\n")
	assert.NotContains(t, out, "Level ")
}

func TestRunExportsResultAndMetrics(t *testing.T) {
	srv := lookupServer(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "crawl.db")
	metricsPath := filepath.Join(dir, "metrics.json")

	_, err := execute(t,
		"--endpoint", srv.URL+"/neighbors",
		"--export-db", dbPath,
		"--metrics-file", metricsPath,
		"A", "1", "2",
	)
	require.NoError(t, err)

	raw, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	var m storage.Metrics
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, 3, m.NodesDiscovered)
	assert.Equal(t, 1, m.FetchesSucceeded)
	assert.Equal(t, storage.ReasonDepthBound, m.TerminationReason)

	store, err := storage.NewStorage(dbPath)
	require.NoError(t, err)
	defer store.Close()

	nodes, err := store.LoadNodes(m.RunID)
	require.NoError(t, err)
	assert.Equal(t, []storage.Node{
		{Label: "A", Depth: 0},
		{Label: "B", Depth: 1},
		{Label: "C", Depth: 1},
	}, nodes)
}

func TestConfigFileIsOverriddenByFlags(t *testing.T) {
	srv := lookupServer(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "endpoint: http://127.0.0.1:1/unused\nstrategy: dynamic\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	out, err := execute(t, "-c", cfgPath, "--endpoint", srv.URL+"/neighbors", "A", "1", "2")
	require.NoError(t, err)

	// dynamic output has no level headers
	assert.NotContains(t, out, "Level ")
	assert.Contains(t, out, "Total: 3 nodes\n")
}
