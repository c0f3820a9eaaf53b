package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/osm"

	"github.com/samirrijal/osmqa/internal/core/domain"
)

// IssueRepo implements ports.IssueRepository with pgx.
type IssueRepo struct {
	db *DB
}

// NewIssueRepo creates a new IssueRepo.
func NewIssueRepo(db *DB) *IssueRepo {
	return &IssueRepo{db: db}
}

const issueColumns = `
	id::text, run_id::text, class, subclass, way_id, vertex,
	ST_Y(location) AS lat, ST_X(location) AS lon,
	tag_value, deviation, text, created_at`

// SaveBatch inserts issues using pgx.Batch.
func (r *IssueRepo) SaveBatch(ctx context.Context, issues []domain.Issue) error {
	if len(issues) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, is := range issues {
		batch.Queue(`
			INSERT INTO qa_issues (id, run_id, class, subclass, way_id, vertex, location, tag_value, deviation, text, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, ST_SetSRID(ST_MakePoint($7, $8), 4326), $9, $10, $11, $12)
			ON CONFLICT (id) DO NOTHING
		`, is.ID, is.RunID, is.Class, is.Subclass, int64(is.WayID), is.Vertex,
			is.Position.Lon, is.Position.Lat, is.TagValue, is.Deviation, is.Text, is.CreatedAt)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range issues {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns an issue by id.
func (r *IssueRepo) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+issueColumns+` FROM qa_issues WHERE id::text = $1`, id)
	is, err := scanIssue(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("issue %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return is, nil
}

// List returns a page of issues and the total number matching filter.
func (r *IssueRepo) List(ctx context.Context, f domain.IssueFilter) ([]domain.Issue, int, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+issueColumns+`, count(*) OVER () AS total
		FROM qa_issues
		WHERE ($1 = 0 OR class = $1)
		  AND ($2 = '' OR run_id::text = $2)
		ORDER BY created_at DESC, way_id, vertex
		OFFSET $3 LIMIT $4
	`, f.Class, f.RunID, f.Offset, f.Limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		issues []domain.Issue
		total  int
	)
	for rows.Next() {
		var (
			is    domain.Issue
			wayID int64
		)
		if err := rows.Scan(
			&is.ID, &is.RunID, &is.Class, &is.Subclass, &wayID, &is.Vertex,
			&is.Position.Lat, &is.Position.Lon,
			&is.TagValue, &is.Deviation, &is.Text, &is.CreatedAt, &total,
		); err != nil {
			return nil, 0, err
		}
		is.WayID = osm.WayID(wayID)
		issues = append(issues, is)
	}
	return issues, total, rows.Err()
}

func scanIssue(row pgx.Row) (*domain.Issue, error) {
	var (
		is    domain.Issue
		wayID int64
	)
	if err := row.Scan(
		&is.ID, &is.RunID, &is.Class, &is.Subclass, &wayID, &is.Vertex,
		&is.Position.Lat, &is.Position.Lon,
		&is.TagValue, &is.Deviation, &is.Text, &is.CreatedAt,
	); err != nil {
		return nil, err
	}
	is.WayID = osm.WayID(wayID)
	return &is, nil
}
