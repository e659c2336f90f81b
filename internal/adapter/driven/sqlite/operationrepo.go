package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.OperationStore = (*OperationRepo)(nil)

// OperationRepo is the SQLite implementation of the OperationStore port interface.
type OperationRepo struct {
	db *DB
}

// NewOperationRepo creates a new OperationRepo backed by the given DB.
func NewOperationRepo(db *DB) *OperationRepo {
	return &OperationRepo{db: db}
}

const operationColumns = `operation_id, operation_type, repo, pr_number, status, current_step,
	progress_percent, steps_completed, steps_total, result_data, error_message, created_at, updated_at`

// Start inserts a new operation.
func (r *OperationRepo) Start(ctx context.Context, op model.OperationProgress) error {
	const query = `
		INSERT INTO operation_progress (
			operation_id, operation_type, repo, pr_number, status, current_step,
			progress_percent, steps_completed, steps_total, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	createdAt := op.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	status := op.Status
	if status == "" {
		status = model.OperationStatusStarted
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		op.OperationID, op.OperationType, op.Repo, op.PRNumber, string(status), op.CurrentStep,
		op.ProgressPercent, op.StepsCompleted, op.StepsTotal, formatTime(createdAt), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("start operation %s: %w", op.OperationID, err)
	}
	return nil
}

// UpdateProgress records a step on a running operation. The stored percent
// only ever grows; finished operations are left untouched.
func (r *OperationRepo) UpdateProgress(ctx context.Context, operationID, step string, stepsCompleted, percent int) error {
	const query = `
		UPDATE operation_progress
		SET status = 'running',
			current_step = ?,
			steps_completed = ?,
			progress_percent = MAX(progress_percent, ?),
			updated_at = ?
		WHERE operation_id = ? AND status IN ('started', 'running')
	`

	percent = max(0, min(percent, 100))
	result, err := r.db.Writer.ExecContext(ctx, query, step, stepsCompleted, percent, formatTime(time.Now()), operationID)
	if err != nil {
		return fmt.Errorf("update operation %s: %w", operationID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("operation %s is missing or finished: %w", operationID, driven.ErrInvalidTransition)
	}
	return nil
}

// Finish moves the operation to a terminal status. Completion forces the
// percent to 100.
func (r *OperationRepo) Finish(ctx context.Context, operationID string, status model.OperationStatus, resultData map[string]any, errMsg string) error {
	const query = `
		UPDATE operation_progress
		SET status = ?,
			result_data = ?,
			error_message = ?,
			progress_percent = CASE WHEN ? = 'completed' THEN 100 ELSE progress_percent END,
			updated_at = ?
		WHERE operation_id = ? AND status IN ('started', 'running')
	`

	if !status.IsTerminal() {
		return fmt.Errorf("finish operation %s with %q: %w", operationID, status, driven.ErrInvalidTransition)
	}

	data, err := marshalResult(resultData)
	if err != nil {
		return err
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		string(status), data, errMsg, string(status), formatTime(time.Now()), operationID,
	)
	if err != nil {
		return fmt.Errorf("finish operation %s: %w", operationID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("operation %s is missing or finished: %w", operationID, driven.ErrInvalidTransition)
	}
	return nil
}

// Get returns (nil, nil) when the operation does not exist.
func (r *OperationRepo) Get(ctx context.Context, operationID string) (*model.OperationProgress, error) {
	query := `SELECT ` + operationColumns + ` FROM operation_progress WHERE operation_id = ?`

	op, err := scanOperation(r.db.Reader.QueryRowContext(ctx, query, operationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get operation %s: %w", operationID, err)
	}
	return op, nil
}

// ListByRepo returns a repository's operations, most recently updated first.
func (r *OperationRepo) ListByRepo(ctx context.Context, repoFullName string, limit int) ([]model.OperationProgress, error) {
	query := `SELECT ` + operationColumns + ` FROM operation_progress
		WHERE repo = ? ORDER BY updated_at DESC LIMIT ?`
	return r.queryOperations(ctx, query, repoFullName, clampLimit(limit, 20, 100))
}

// ListRecent returns the most recently updated operations across all repositories.
func (r *OperationRepo) ListRecent(ctx context.Context, limit int) ([]model.OperationProgress, error) {
	query := `SELECT ` + operationColumns + ` FROM operation_progress ORDER BY updated_at DESC LIMIT ?`
	return r.queryOperations(ctx, query, clampLimit(limit, 20, 100))
}

func (r *OperationRepo) queryOperations(ctx context.Context, query string, args ...any) ([]model.OperationProgress, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	ops := []model.OperationProgress{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		ops = append(ops, *op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}

	return ops, nil
}

func scanOperation(s scanner) (*model.OperationProgress, error) {
	var (
		op         model.OperationProgress
		status     string
		resultData sql.NullString
		createdAt  string
		updatedAt  string
	)

	err := s.Scan(
		&op.OperationID, &op.OperationType, &op.Repo, &op.PRNumber, &status, &op.CurrentStep,
		&op.ProgressPercent, &op.StepsCompleted, &op.StepsTotal, &resultData, &op.ErrorMessage,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	op.Status = model.OperationStatus(status)
	if op.ResultData, err = unmarshalResult(resultData); err != nil {
		return nil, err
	}
	if op.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if op.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &op, nil
}
