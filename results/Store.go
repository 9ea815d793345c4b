// Package results records experiment runs in a SQLite database so that
// separate invocations of the training and inference programs can be
// compared after the fact. Each run gets a UUID, a timestamped output
// directory, and a row holding its configuration and summary metrics.
package results

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ncruces/go-strftime"

	_ "modernc.org/sqlite"
)

// Run summarizes a single training or inference run.
type Run struct {
	// ID is the unique identifier of the run
	ID string

	// Kind names the program that produced the run, e.g. "infer" or
	// "train"
	Kind string

	// Config is the JSON-encoded configuration of the run
	Config string

	// Dir is the directory holding the run's artifacts
	Dir string

	// FinalDistance is the end effector's distance to the target at
	// the end of the run. It is NaN for training runs.
	FinalDistance float64

	// TotalCost is the accumulated cost over the run. For training
	// runs this holds the final training loss.
	TotalCost float64

	// Steps is the number of control ticks or gradient steps taken
	Steps int

	// WallTime is how long the run took
	WallTime time.Duration

	// StartedAt is when the run began
	StartedAt time.Time
}

// Store persists Runs in a SQLite database
type Store struct {
	db *sql.DB
}

// Open opens the run database at path, creating it and its schema if
// needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("open: no database path given")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open: could not open database: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			config TEXT NOT NULL,
			dir TEXT NOT NULL,
			final_distance REAL NOT NULL,
			total_cost REAL NOT NULL,
			steps INTEGER NOT NULL,
			wall_time_ns INTEGER NOT NULL,
			started_at_ns INTEGER NOT NULL
		);
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open: could not create schema: %v", err)
	}

	return &Store{db: db}, nil
}

// NewRun registers a new run of the given kind and creates its output
// directory under baseDir. The directory name embeds the start time
// and the first UUID block so that concurrent runs cannot collide.
func (s *Store) NewRun(kind, config, baseDir string) (*Run, error) {
	id := uuid.NewString()
	started := time.Now()

	dir := filepath.Join(baseDir, RunDirName(kind, id, started))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("newrun: could not create run directory: %v",
			err)
	}

	return &Run{
		ID:        id,
		Kind:      kind,
		Config:    config,
		Dir:       dir,
		StartedAt: started,
	}, nil
}

// Save writes the run's row, replacing any previous row with the same
// ID.
func (s *Store) Save(run *Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, kind, config, dir, final_distance,
			total_cost, steps, wall_time_ns, started_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			config = excluded.config,
			dir = excluded.dir,
			final_distance = excluded.final_distance,
			total_cost = excluded.total_cost,
			steps = excluded.steps,
			wall_time_ns = excluded.wall_time_ns,
			started_at_ns = excluded.started_at_ns
	`, run.ID, run.Kind, run.Config, run.Dir, run.FinalDistance,
		run.TotalCost, run.Steps, int64(run.WallTime),
		run.StartedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save: could not write run %v: %v", run.ID, err)
	}
	return nil
}

// Get returns the run with the given ID
func (s *Store) Get(id string) (*Run, bool, error) {
	var (
		run       Run
		wallNs    int64
		startedNs int64
	)
	err := s.db.QueryRow(`
		SELECT id, kind, config, dir, final_distance, total_cost, steps,
			wall_time_ns, started_at_ns
		FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.Kind, &run.Config, &run.Dir,
		&run.FinalDistance, &run.TotalCost, &run.Steps, &wallNs,
		&startedNs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get: could not read run %v: %v", id,
			err)
	}

	run.WallTime = time.Duration(wallNs)
	run.StartedAt = time.Unix(0, startedNs)
	return &run, true, nil
}

// List returns every run of the given kind, most recent first. An
// empty kind returns all runs.
func (s *Store) List(kind string) ([]*Run, error) {
	query := `
		SELECT id, kind, config, dir, final_distance, total_cost, steps,
			wall_time_ns, started_at_ns
		FROM runs
	`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY started_at_ns DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list: could not query runs: %v", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			run       Run
			wallNs    int64
			startedNs int64
		)
		err := rows.Scan(&run.ID, &run.Kind, &run.Config, &run.Dir,
			&run.FinalDistance, &run.TotalCost, &run.Steps, &wallNs,
			&startedNs)
		if err != nil {
			return nil, fmt.Errorf("list: could not scan run: %v", err)
		}
		run.WallTime = time.Duration(wallNs)
		run.StartedAt = time.Unix(0, startedNs)
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// RunDirName returns the directory name for a run started at the
// given time, e.g. "infer_2024-06-01_15-04-05_1b4e28ba".
func RunDirName(kind, id string, started time.Time) string {
	stamp := strftime.Format("%Y-%m-%d_%H-%M-%S", started)
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%v_%v_%v", kind, stamp, short)
}
