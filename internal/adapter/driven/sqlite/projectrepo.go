package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProjectStore = (*ProjectRepo)(nil)

// ProjectRepo is the SQLite implementation of the ProjectStore port interface.
type ProjectRepo struct {
	db *DB
}

// NewProjectRepo creates a new ProjectRepo backed by the given DB.
func NewProjectRepo(db *DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

// Upsert inserts a project or refreshes its metrics. The first-seen time and
// any stored summary survive a refresh.
func (r *ProjectRepo) Upsert(ctx context.Context, p model.Project) (bool, error) {
	const insert = `
		INSERT INTO projects (
			full_name, url, description, language, stars, topics, query, score, pushed_at, first_seen_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(full_name) DO NOTHING
	`
	const update = `
		UPDATE projects SET
			url = ?, description = ?, language = ?, stars = ?, topics = ?, query = ?,
			score = ?, pushed_at = ?, updated_at = ?
		WHERE full_name = ?
	`

	topics, err := marshalStrings(p.Topics)
	if err != nil {
		return false, err
	}

	now := formatTime(time.Now())
	var pushedAt sql.NullString
	if !p.PushedAt.IsZero() {
		pushedAt = sql.NullString{String: formatTime(p.PushedAt), Valid: true}
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	result, err := tx.ExecContext(ctx, insert,
		p.FullName, p.URL, p.Description, p.Language, p.Stars, topics, p.Query, p.Score, pushedAt, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("insert project %s: %w", p.FullName, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	created := rows == 1

	if !created {
		if _, err := tx.ExecContext(ctx, update,
			p.URL, p.Description, p.Language, p.Stars, topics, p.Query, p.Score, pushedAt, now, p.FullName,
		); err != nil {
			return false, fmt.Errorf("refresh project %s: %w", p.FullName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}

	return created, nil
}

// SetSummary stores a generated summary for a project.
func (r *ProjectRepo) SetSummary(ctx context.Context, fullName, summary string) error {
	const query = `UPDATE projects SET summary = ?, updated_at = ? WHERE full_name = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, summary, formatTime(time.Now()), fullName)
	if err != nil {
		return fmt.Errorf("set summary for %s: %w", fullName, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("project %s: %w", fullName, driven.ErrNotFound)
	}
	return nil
}

// List returns projects scoring at least minScore, best first.
func (r *ProjectRepo) List(ctx context.Context, minScore float64, limit int) ([]model.Project, error) {
	const query = `
		SELECT full_name, url, description, language, stars, topics, query, score, summary,
			pushed_at, first_seen_at, updated_at
		FROM projects
		WHERE score >= ?
		ORDER BY score DESC, stars DESC
		LIMIT ?
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, minScore, clampLimit(limit, 50, 100))
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	return projects, nil
}

// Count returns the number of stored projects.
func (r *ProjectRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return n, nil
}

func scanProject(s scanner) (*model.Project, error) {
	var (
		p           model.Project
		topics      string
		pushedAt    sql.NullString
		firstSeenAt string
		updatedAt   string
	)

	err := s.Scan(&p.FullName, &p.URL, &p.Description, &p.Language, &p.Stars, &topics, &p.Query,
		&p.Score, &p.Summary, &pushedAt, &firstSeenAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if p.Topics, err = unmarshalStrings(topics); err != nil {
		return nil, err
	}
	pushed, err := parseNullTime(pushedAt)
	if err != nil {
		return nil, fmt.Errorf("parse pushed_at: %w", err)
	}
	if pushed != nil {
		p.PushedAt = *pushed
	}
	if p.FirstSeenAt, err = parseTime(firstSeenAt); err != nil {
		return nil, fmt.Errorf("parse first_seen_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &p, nil
}
