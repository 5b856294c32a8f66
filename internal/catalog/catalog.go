package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/specpol/specpol/internal/catalog/migrations"
	"github.com/specpol/specpol/polar/trace"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// Run is one catalogued reduction.
type Run struct {
	ID        string
	CreatedAt time.Time
	Method    string
	Parameter string
	Exposures int
	MinOrder  int
	MaxOrder  int
	Output    string
	Inputs    []string

	StoredOrders      int
	SkippedOrders     int
	NonFiniteElements int
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// Catalog is a SQLite-backed run catalog.
type Catalog struct {
	db   *sql.DB
	path string
}

// Open opens or creates the catalog database at path.
func Open(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	c := &Catalog{db: db, path: path}
	if err := c.migrate(migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return c, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.path
}

// migrate applies every embedded migration newer than the recorded schema
// version.
func (c *Catalog) migrate(fsys embed.FS) error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := c.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := c.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := c.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration.
func (c *Catalog) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	row := c.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// RecordRun stores a run with its inputs and order outcomes in one
// transaction. The summary counters of run are derived from rt.
func (c *Catalog) RecordRun(ctx context.Context, run Run, rt *trace.ReductionTrace) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	summary := trace.Summarize(rt)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, method, parameter, exposures, min_order, max_order,
			output, stored_orders, skipped_orders, nonfinite_elements)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.CreatedAt.UTC().Format(time.RFC3339Nano), run.Method, run.Parameter,
		run.Exposures, run.MinOrder, run.MaxOrder, run.Output,
		summary.StoredCount, summary.SkippedCount, summary.NonFiniteElements)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for i, path := range run.Inputs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO run_inputs (run_id, position, path) VALUES (?, ?, ?)",
			run.ID, i+1, path); err != nil {
			return fmt.Errorf("inserting input %d: %w", i+1, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_orders (run_id, order_number, state, reason, exposures, elements, nonfinite,
			degree_mean, degree_rms, first_null_rms, second_null_rms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	if rt != nil {
		for _, r := range rt.Orders {
			if _, err := stmt.ExecContext(ctx, run.ID, r.Order, string(r.State), r.Reason,
				r.Exposures, r.Elements, r.NonFinite,
				r.Degree.Mean, r.Degree.RMS, r.FirstNull.RMS, r.SecondNull.RMS); err != nil {
				return fmt.Errorf("inserting order %d: %w", r.Order, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

const runColumns = `id, created_at, method, parameter, exposures, min_order, max_order,
	output, stored_orders, skipped_orders, nonfinite_elements`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var createdAt string
	if err := row.Scan(&run.ID, &createdAt, &run.Method, &run.Parameter, &run.Exposures,
		&run.MinOrder, &run.MaxOrder, &run.Output,
		&run.StoredOrders, &run.SkippedOrders, &run.NonFiniteElements); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at of run %s: %w", run.ID, err)
	}
	run.CreatedAt = t
	return &run, nil
}

// GetRun retrieves a run with its inputs.
func (c *Catalog) GetRun(ctx context.Context, id string) (*Run, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	rows, err := c.db.QueryContext(ctx,
		"SELECT path FROM run_inputs WHERE run_id = ? ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("querying inputs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scanning input: %w", err)
		}
		run.Inputs = append(run.Inputs, path)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating inputs: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs, newest first. Inputs are not loaded.
func (c *Catalog) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// OrderRecords returns the stored order outcomes of a run in ascending
// order. Only the summary statistics persisted by RecordRun are populated.
func (c *Catalog) OrderRecords(ctx context.Context, id string) ([]trace.OrderRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT order_number, state, reason, exposures, elements, nonfinite,
			degree_mean, degree_rms, first_null_rms, second_null_rms
		FROM run_orders WHERE run_id = ? ORDER BY order_number
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var records []trace.OrderRecord
	for rows.Next() {
		var r trace.OrderRecord
		var state string
		if err := rows.Scan(&r.Order, &state, &r.Reason, &r.Exposures, &r.Elements, &r.NonFinite,
			&r.Degree.Mean, &r.Degree.RMS, &r.FirstNull.RMS, &r.SecondNull.RMS); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		r.State = trace.OrderState(state)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	return records, nil
}
