package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DBFileName is the catalog database file inside the data directory.
const DBFileName = "xtd.db"

// Run is one recorded detection run.
type Run struct {
	ID        int64
	CreatedAt time.Time
	Source    string
	Columns   []string

	K         int
	Layers    int
	Quantile  float64
	MinPoints int
	Eps       float64

	NumEvents    int
	NumSurvivors int
	NumClusters  int

	Duration time.Duration
}

// ClusterRecord summarizes one cluster of a recorded run. Label -1 holds
// the noise bucket.
type ClusterRecord struct {
	RunID         int64
	Label         int
	Size          int
	SimulatedFrac float64
	Centroid      []float64
}

// Catalog stores detection runs in a SQLite database under the project's
// .xtd directory.
type Catalog struct {
	db  *sql.DB
	dir string
}

// Open opens (creating when necessary) the run catalog rooted at
// projectRoot.
func Open(projectRoot string) (*Catalog, error) {
	dir := filepath.Join(projectRoot, ".xtd")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating .xtd directory: %w", err)
	}

	dbPath := filepath.Join(dir, DBFileName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing catalog schema: %w", err)
	}

	return &Catalog{db: db, dir: dir}, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// SaveRun records a run and its cluster summaries, returning the run id.
func (c *Catalog) SaveRun(ctx context.Context, run Run, clusters []ClusterRecord) (int64, error) {
	columnsJSON, err := json.Marshal(run.Columns)
	if err != nil {
		return 0, fmt.Errorf("encoding columns: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (created_at, source, columns, k, layers, quantile, min_points, eps,
		                  num_events, num_survivors, num_clusters, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		createdAt.Format(time.RFC3339Nano), run.Source, string(columnsJSON),
		run.K, run.Layers, run.Quantile, run.MinPoints, run.Eps,
		run.NumEvents, run.NumSurvivors, run.NumClusters,
		run.Duration.Milliseconds())
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	for _, cl := range clusters {
		centroidJSON, err := json.Marshal(cl.Centroid)
		if err != nil {
			return 0, fmt.Errorf("encoding centroid: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_clusters (run_id, label, size, simulated_frac, centroid)
			VALUES (?, ?, ?, ?, ?)`,
			id, cl.Label, cl.Size, cl.SimulatedFrac, string(centroidJSON)); err != nil {
			return 0, fmt.Errorf("inserting cluster %d: %w", cl.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// ListRuns returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (c *Catalog) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, created_at, source, columns, k, layers, quantile, min_points, eps,
		       num_events, num_survivors, num_clusters, duration_ms
		FROM runs ORDER BY created_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run and its cluster summaries.
func (c *Catalog) GetRun(ctx context.Context, id int64) (Run, []ClusterRecord, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, created_at, source, columns, k, layers, quantile, min_points, eps,
		       num_events, num_survivors, num_clusters, duration_ms
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return Run{}, nil, err
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT run_id, label, size, simulated_frac, centroid
		FROM run_clusters WHERE run_id = ? ORDER BY label`, id)
	if err != nil {
		return Run{}, nil, fmt.Errorf("querying clusters: %w", err)
	}
	defer rows.Close()

	var clusters []ClusterRecord
	for rows.Next() {
		var cl ClusterRecord
		var centroidJSON string
		if err := rows.Scan(&cl.RunID, &cl.Label, &cl.Size, &cl.SimulatedFrac, &centroidJSON); err != nil {
			return Run{}, nil, fmt.Errorf("scanning cluster: %w", err)
		}
		if err := json.Unmarshal([]byte(centroidJSON), &cl.Centroid); err != nil {
			return Run{}, nil, fmt.Errorf("decoding centroid: %w", err)
		}
		clusters = append(clusters, cl)
	}
	return run, clusters, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var createdAt, columnsJSON string
	var durationMS int64
	if err := row.Scan(&run.ID, &createdAt, &run.Source, &columnsJSON,
		&run.K, &run.Layers, &run.Quantile, &run.MinPoints, &run.Eps,
		&run.NumEvents, &run.NumSurvivors, &run.NumClusters, &durationMS); err != nil {
		return Run{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Run{}, fmt.Errorf("parsing run timestamp: %w", err)
	}
	run.CreatedAt = t
	if err := json.Unmarshal([]byte(columnsJSON), &run.Columns); err != nil {
		return Run{}, fmt.Errorf("decoding columns: %w", err)
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}
