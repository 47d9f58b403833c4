// Package migrate keeps the preferences schema current using SQL files
// embedded at build time. Files are named NNN_description.sql.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrations embed.FS

const ledgerDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	name       VARCHAR NOT NULL,
	applied_at TIMESTAMP DEFAULT current_timestamp
)`

// Step is one embedded schema change.
type Step struct {
	Version int
	Name    string
	body    string
}

// Runner applies embedded steps to a database.
type Runner struct {
	db    *sql.DB
	steps func() ([]Step, error)
}

// NewRunner returns a runner for db using the embedded steps.
func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db, steps: embeddedSteps}
}

func embeddedSteps() ([]Step, error) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("migrate: list: %w", err)
	}

	steps := make([]Step, 0, len(names))
	for _, name := range names {
		base := path.Base(name)
		ver, err := parseVersion(base)
		if err != nil {
			return nil, err
		}
		body, err := migrations.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("migrate: read %s: %w", base, err)
		}
		steps = append(steps, Step{Version: ver, Name: base, body: string(body)})
	}

	slices.SortFunc(steps, func(a, b Step) int { return a.Version - b.Version })
	for i := 1; i < len(steps); i++ {
		if steps[i].Version == steps[i-1].Version {
			return nil, fmt.Errorf("migrate: duplicate version %d (%s, %s)", steps[i].Version, steps[i-1].Name, steps[i].Name)
		}
	}
	return steps, nil
}

func parseVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("migrate: %s: missing NNN_ prefix", name)
	}
	ver, err := strconv.Atoi(prefix)
	if err != nil || ver <= 0 {
		return 0, fmt.Errorf("migrate: %s: bad version %q", name, prefix)
	}
	return ver, nil
}

// Applied returns the versions recorded in the ledger.
func (r *Runner) Applied(ctx context.Context) (map[int]bool, error) {
	if _, err := r.db.ExecContext(ctx, ledgerDDL); err != nil {
		return nil, fmt.Errorf("migrate: ledger: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate: read ledger: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("migrate: scan ledger: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// Run applies every step missing from the ledger, lowest version first.
// A step and its ledger row commit together.
func (r *Runner) Run(ctx context.Context) (int, error) {
	steps, err := r.steps()
	if err != nil {
		return 0, err
	}
	applied, err := r.Applied(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, st := range steps {
		if applied[st.Version] {
			continue
		}
		if err := r.apply(ctx, st); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (r *Runner) apply(ctx context.Context, st Step) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: %s: begin: %w", st.Name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, st.body); err != nil {
		return fmt.Errorf("migrate: %s: %w", st.Name, err)
	}
	if _, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", st.Version, st.Name); err != nil {
		return fmt.Errorf("migrate: %s: record: %w", st.Name, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("migrate: %s: commit: %w", st.Name, err)
	}
	return nil
}
