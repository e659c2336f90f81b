package driven

import (
	"context"
	"errors"

	"github.com/jmbish04/gh-bot/internal/domain/model"
)

// ErrInvalidTransition is returned when a status update would move a record
// backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid status transition")

// CommandFilter narrows ListCommands results. Zero values mean "any".
type CommandFilter struct {
	Repo   string
	Author string
	Limit  int
	Offset int
}

// CommandStore defines the driven port for the colby_commands ledger.
// Records are never deleted.
type CommandStore interface {
	// Create inserts a record and returns its ID.
	Create(ctx context.Context, rec model.CommandRecord) (int64, error)
	// MarkWorking moves a queued record to working.
	MarkWorking(ctx context.Context, id int64) error
	// Complete moves a record to completed, storing the prompt and result data.
	Complete(ctx context.Context, id int64, prompt string, result map[string]any) error
	// Fail moves a record to failed with the given message.
	Fail(ctx context.Context, id int64, message string) error
	Get(ctx context.Context, id int64) (*model.CommandRecord, error)
	List(ctx context.Context, filter CommandFilter) ([]model.CommandRecord, error)
}

// OperationStore defines the driven port for operation_progress records.
type OperationStore interface {
	Start(ctx context.Context, op model.OperationProgress) error
	// UpdateProgress records a step. progress_percent never decreases.
	UpdateProgress(ctx context.Context, operationID, step string, stepsCompleted, percent int) error
	Finish(ctx context.Context, operationID string, status model.OperationStatus, result map[string]any, errMsg string) error
	// Get returns (nil, nil) when the operation does not exist.
	Get(ctx context.Context, operationID string) (*model.OperationProgress, error)
	ListByRepo(ctx context.Context, repoFullName string, limit int) ([]model.OperationProgress, error)
	ListRecent(ctx context.Context, limit int) ([]model.OperationProgress, error)
}
