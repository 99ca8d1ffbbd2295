package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Storage writes finished crawl results to a SQLite file.
// It is an export sink only; the crawler never reads it back.
type Storage struct {
	db *sql.DB
}

// NewStorage opens or creates the DB file and initializes the schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		run_id TEXT PRIMARY KEY,
		start_label TEXT NOT NULL,
		strategy TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		workers INTEGER NOT NULL,
		reason TEXT,
		elapsed_ms INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS crawl_nodes (
		run_id TEXT NOT NULL,
		label TEXT NOT NULL,
		depth INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES crawl_runs(run_id),
		UNIQUE(run_id, label)
	);

	CREATE INDEX IF NOT EXISTS idx_crawl_nodes_run ON crawl_nodes(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveResult writes one crawl result under runID in a single transaction
func (s *Storage) SaveResult(runID string, res *Result) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO crawl_runs (run_id, start_label, strategy, max_depth, workers, reason, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, res.StartLabel, string(res.Strategy), res.MaxDepth, res.Workers, res.Reason, res.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO crawl_nodes (run_id, label, depth) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range res.Nodes {
		if _, err := stmt.Exec(runID, n.Label, n.Depth); err != nil {
			return fmt.Errorf("failed to insert node %q: %w", n.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}
	return nil
}

// LoadNodes returns the nodes exported for runID, ordered by depth then label
func (s *Storage) LoadNodes(runID string) ([]Node, error) {
	rows, err := s.db.Query(`
		SELECT label, depth
		FROM crawl_nodes
		WHERE run_id = ?
		ORDER BY depth ASC, label ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.Label, &n.Depth); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return nodes, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
