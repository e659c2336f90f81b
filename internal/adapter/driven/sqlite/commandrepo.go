package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CommandStore = (*CommandRepo)(nil)

// CommandRepo is the SQLite implementation of the CommandStore port interface.
// Status updates are guarded in SQL so a record only ever moves forward.
type CommandRepo struct {
	db *DB
}

// NewCommandRepo creates a new CommandRepo backed by the given DB.
func NewCommandRepo(db *DB) *CommandRepo {
	return &CommandRepo{db: db}
}

const commandColumns = `id, delivery_id, repo, pr_number, author, command, args, status,
	prompt_generated, result_data, error_message, created_at, completed_at`

// Create inserts a queued record and returns its ID.
func (r *CommandRepo) Create(ctx context.Context, rec model.CommandRecord) (int64, error) {
	const query = `
		INSERT INTO colby_commands (delivery_id, repo, pr_number, author, command, args, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	args, err := json.Marshal(rec.Args)
	if err != nil {
		return 0, fmt.Errorf("marshal command args: %w", err)
	}

	status := rec.Status
	if status == "" {
		status = model.CommandStatusQueued
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		rec.DeliveryID, rec.Repo, rec.PRNumber, rec.Author, string(rec.Command), string(args),
		string(status), formatTime(createdAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert command %s for %s#%d: %w", rec.Command, rec.Repo, rec.PRNumber, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read command id: %w", err)
	}
	return id, nil
}

// MarkWorking moves a queued record to working.
func (r *CommandRepo) MarkWorking(ctx context.Context, id int64) error {
	const query = `UPDATE colby_commands SET status = 'working' WHERE id = ? AND status = 'queued'`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark command %d working: %w", id, err)
	}
	return r.checkTransition(ctx, result, id)
}

// Complete moves a non-terminal record to completed.
func (r *CommandRepo) Complete(ctx context.Context, id int64, prompt string, resultData map[string]any) error {
	const query = `
		UPDATE colby_commands
		SET status = 'completed', prompt_generated = ?, result_data = ?, completed_at = ?
		WHERE id = ? AND status IN ('queued', 'working')
	`

	data, err := marshalResult(resultData)
	if err != nil {
		return err
	}

	result, err := r.db.Writer.ExecContext(ctx, query, prompt, data, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("complete command %d: %w", id, err)
	}
	return r.checkTransition(ctx, result, id)
}

// Fail moves a non-terminal record to failed.
func (r *CommandRepo) Fail(ctx context.Context, id int64, message string) error {
	const query = `
		UPDATE colby_commands
		SET status = 'failed', error_message = ?, completed_at = ?
		WHERE id = ? AND status IN ('queued', 'working')
	`

	result, err := r.db.Writer.ExecContext(ctx, query, message, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("fail command %d: %w", id, err)
	}
	return r.checkTransition(ctx, result, id)
}

// checkTransition distinguishes a missing record from a refused transition
// when an update touched no rows.
func (r *CommandRepo) checkTransition(ctx context.Context, result sql.Result, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("command %d: %w", id, driven.ErrNotFound)
	}
	return fmt.Errorf("command %d is %s: %w", id, rec.Status, driven.ErrInvalidTransition)
}

// Get returns a record by ID, or (nil, nil) when it does not exist.
func (r *CommandRepo) Get(ctx context.Context, id int64) (*model.CommandRecord, error) {
	query := `SELECT ` + commandColumns + ` FROM colby_commands WHERE id = ?`

	rec, err := scanCommand(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get command %d: %w", id, err)
	}
	return rec, nil
}

// List returns records newest first, filtered by repo and author.
func (r *CommandRepo) List(ctx context.Context, filter driven.CommandFilter) ([]model.CommandRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Repo != "" {
		where = append(where, "repo = ?")
		args = append(args, filter.Repo)
	}
	if filter.Author != "" {
		where = append(where, "author = ?")
		args = append(args, filter.Author)
	}

	query := `SELECT ` + commandColumns + ` FROM colby_commands`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, clampLimit(filter.Limit, 50, 100), max(filter.Offset, 0))

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	defer rows.Close()

	records := []model.CommandRecord{}
	for rows.Next() {
		rec, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}

	return records, nil
}

func scanCommand(s scanner) (*model.CommandRecord, error) {
	var (
		rec         model.CommandRecord
		command     string
		args        string
		status      string
		resultData  sql.NullString
		createdAt   string
		completedAt sql.NullString
	)

	err := s.Scan(
		&rec.ID, &rec.DeliveryID, &rec.Repo, &rec.PRNumber, &rec.Author, &command, &args, &status,
		&rec.PromptGenerated, &resultData, &rec.ErrorMessage, &createdAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Command = model.CommandName(command)
	rec.Status = model.CommandStatus(status)

	if err := json.Unmarshal([]byte(args), &rec.Args); err != nil {
		return nil, fmt.Errorf("unmarshal command args: %w", err)
	}
	if rec.ResultData, err = unmarshalResult(resultData); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}

	return &rec, nil
}
