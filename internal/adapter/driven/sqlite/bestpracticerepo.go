package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.BestPracticeStore = (*BestPracticeRepo)(nil)
	_ driven.IssueLinkStore    = (*IssueLinkRepo)(nil)
)

// BestPracticeRepo is the SQLite implementation of the BestPracticeStore port interface.
type BestPracticeRepo struct {
	db *DB
}

// NewBestPracticeRepo creates a new BestPracticeRepo backed by the given DB.
func NewBestPracticeRepo(db *DB) *BestPracticeRepo {
	return &BestPracticeRepo{db: db}
}

// Add inserts a bookmarked suggestion. Tags are serialized as a JSON array.
func (r *BestPracticeRepo) Add(ctx context.Context, bp model.BestPractice) (int64, error) {
	const query = `
		INSERT INTO best_practices (repo, pr_number, author, suggestion, file_path, category, tags, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	tags, err := marshalStrings(bp.Tags)
	if err != nil {
		return 0, err
	}
	status := bp.Status
	if status == "" {
		status = model.BestPracticePending
	}
	createdAt := bp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		bp.Repo, bp.PRNumber, bp.Author, bp.Suggestion, bp.FilePath, bp.Category, tags,
		string(status), formatTime(createdAt),
	)
	if err != nil {
		return 0, fmt.Errorf("add best practice for %s#%d: %w", bp.Repo, bp.PRNumber, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read best practice id: %w", err)
	}
	return id, nil
}

// List returns bookmarked suggestions newest first.
func (r *BestPracticeRepo) List(ctx context.Context, filter driven.BestPracticeFilter) ([]model.BestPractice, error) {
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT id, repo, pr_number, author, suggestion, file_path, category, tags, status, created_at
		FROM best_practices`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, clampLimit(filter.Limit, 50, 100), max(filter.Offset, 0))

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list best practices: %w", err)
	}
	defer rows.Close()

	items := []model.BestPractice{}
	for rows.Next() {
		var (
			bp        model.BestPractice
			tags      string
			status    string
			createdAt string
		)
		if err := rows.Scan(&bp.ID, &bp.Repo, &bp.PRNumber, &bp.Author, &bp.Suggestion, &bp.FilePath,
			&bp.Category, &tags, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan best practice: %w", err)
		}
		bp.Status = model.BestPracticeStatus(status)
		if bp.Tags, err = unmarshalStrings(tags); err != nil {
			return nil, err
		}
		if bp.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		items = append(items, bp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate best practices: %w", err)
	}

	return items, nil
}

// IssueLinkRepo is the SQLite implementation of the IssueLinkStore port interface.
type IssueLinkRepo struct {
	db *DB
}

// NewIssueLinkRepo creates a new IssueLinkRepo backed by the given DB.
func NewIssueLinkRepo(db *DB) *IssueLinkRepo {
	return &IssueLinkRepo{db: db}
}

// Add records an issue opened for a pull request.
func (r *IssueLinkRepo) Add(ctx context.Context, link model.IssueLink) error {
	const query = `
		INSERT INTO issue_links (repo, pr_number, issue_number, issue_url, command, file_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := link.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		link.Repo, link.PRNumber, link.IssueNumber, link.IssueURL, string(link.Command), link.FilePath,
		formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("add issue link %s#%d: %w", link.Repo, link.IssueNumber, err)
	}
	return nil
}

// ListByRepo returns a repository's issue links newest first.
func (r *IssueLinkRepo) ListByRepo(ctx context.Context, repoFullName string, limit int) ([]model.IssueLink, error) {
	const query = `
		SELECT id, repo, pr_number, issue_number, issue_url, command, file_path, created_at
		FROM issue_links
		WHERE repo = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, repoFullName, clampLimit(limit, 50, 100))
	if err != nil {
		return nil, fmt.Errorf("list issue links for %s: %w", repoFullName, err)
	}
	defer rows.Close()

	links := []model.IssueLink{}
	for rows.Next() {
		var (
			link      model.IssueLink
			command   string
			createdAt string
		)
		if err := rows.Scan(&link.ID, &link.Repo, &link.PRNumber, &link.IssueNumber, &link.IssueURL,
			&command, &link.FilePath, &createdAt); err != nil {
			return nil, fmt.Errorf("scan issue link: %w", err)
		}
		link.Command = model.CommandName(command)
		if link.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issue links: %w", err)
	}

	return links, nil
}
