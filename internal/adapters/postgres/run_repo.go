package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/osmqa/internal/core/domain"
)

// RunRepo implements ports.RunRepository with pgx.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new RunRepo.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// Create inserts run. An existing run with the same id is left untouched.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO qa_runs (id, mode, classes, status, ways_scanned, issues_found, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, run.ID, string(run.Mode), run.Classes, string(run.Status),
		run.WaysScanned, run.IssuesFound, run.Error, run.StartedAt, run.FinishedAt)
	return err
}

func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE qa_runs
		SET status = $2, ways_scanned = $3, issues_found = $4, error = $5, finished_at = $6
		WHERE id = $1
	`, run.ID, string(run.Status), run.WaysScanned, run.IssuesFound, run.Error, run.FinishedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s: %w", run.ID, domain.ErrNotFound)
	}
	return nil
}

const runColumns = `id::text, mode, classes, status, ways_scanned, issues_found, COALESCE(error, ''), started_at, finished_at`

func (r *RunRepo) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	run, err := scanRun(r.db.Pool.QueryRow(ctx, `SELECT `+runColumns+` FROM qa_runs WHERE id::text = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	return run, err
}

// List returns the most recent runs first.
func (r *RunRepo) List(ctx context.Context, limit int) ([]domain.Run, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+runColumns+` FROM qa_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*domain.Run, error) {
	var (
		run          domain.Run
		mode, status string
	)
	if err := row.Scan(
		&run.ID, &mode, &run.Classes, &status,
		&run.WaysScanned, &run.IssuesFound, &run.Error, &run.StartedAt, &run.FinishedAt,
	); err != nil {
		return nil, err
	}
	run.Mode = domain.AnalysisMode(mode)
	run.Status = domain.RunStatus(status)
	return &run, nil
}
