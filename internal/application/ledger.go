package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// ledger records command lifecycles and operation progress. Write failures
// are logged and never abort the command being recorded.
type ledger struct {
	commands   driven.CommandStore
	operations driven.OperationStore
	logger     *slog.Logger
}

// commandEntry is one queued CommandRecord owned by the current event.
type commandEntry struct {
	id      int64
	command model.Command
}

// queue inserts a queued record for every command, in order.
func (l *ledger) queue(ctx context.Context, ev model.Event, cmds []model.Command) []commandEntry {
	entries := make([]commandEntry, 0, len(cmds))
	for _, cmd := range cmds {
		id, err := l.commands.Create(ctx, model.CommandRecord{
			DeliveryID: ev.DeliveryID,
			Repo:       ev.Repo,
			PRNumber:   ev.PRNumber,
			Author:     ev.Author,
			Command:    cmd.Name,
			Args:       cmd.Args,
			Status:     model.CommandStatusQueued,
		})
		if err != nil {
			l.logger.Error("failed to record command",
				"repo", ev.Repo, "pr_number", ev.PRNumber, "command", cmd.Name, "error", err)
		}
		entries = append(entries, commandEntry{id: id, command: cmd})
	}
	return entries
}

func (l *ledger) working(ctx context.Context, e commandEntry) {
	if e.id == 0 {
		return
	}
	if err := l.commands.MarkWorking(ctx, e.id); err != nil {
		l.logger.Error("failed to mark command working", "command_id", e.id, "error", err)
	}
}

func (l *ledger) complete(ctx context.Context, e commandEntry, prompt string, result map[string]any) {
	if e.id == 0 {
		return
	}
	if err := l.commands.Complete(ctx, e.id, prompt, result); err != nil {
		l.logger.Error("failed to complete command", "command_id", e.id, "error", err)
	}
}

func (l *ledger) fail(ctx context.Context, e commandEntry, message string) {
	if e.id == 0 {
		return
	}
	if err := l.commands.Fail(ctx, e.id, message); err != nil {
		l.logger.Error("failed to fail command", "command_id", e.id, "error", err)
	}
}

// operation tracks step progress for one command invocation.
type operation struct {
	id     string
	store  driven.OperationStore
	logger *slog.Logger
	total  int
	done   int
}

// begin starts a new operation with a generated ID.
func (l *ledger) begin(ctx context.Context, opType string, ev model.Event, stepsTotal int) *operation {
	op := &operation{
		id:     uuid.NewString(),
		store:  l.operations,
		logger: l.logger,
		total:  stepsTotal,
	}

	now := time.Now().UTC()
	err := l.operations.Start(ctx, model.OperationProgress{
		OperationID:   op.id,
		OperationType: opType,
		Repo:          ev.Repo,
		PRNumber:      ev.PRNumber,
		Status:        model.OperationStatusStarted,
		CurrentStep:   "started",
		StepsTotal:    stepsTotal,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		l.logger.Error("failed to start operation", "operation_id", op.id, "error", err)
	}
	return op
}

// step records that the named step has started. Percent stays below 100
// until the operation finishes.
func (o *operation) step(ctx context.Context, name string) {
	percent := 0
	if o.total > 0 {
		percent = min(o.done*100/o.total, 99)
	}
	if err := o.store.UpdateProgress(ctx, o.id, name, o.done, percent); err != nil {
		o.logger.Warn("failed to update operation progress", "operation_id", o.id, "error", err)
	}
	o.done++
}

func (o *operation) complete(ctx context.Context, result map[string]any) {
	if err := o.store.Finish(ctx, o.id, model.OperationStatusCompleted, result, ""); err != nil {
		o.logger.Warn("failed to finish operation", "operation_id", o.id, "error", err)
	}
}

func (o *operation) fail(ctx context.Context, err error) {
	if ferr := o.store.Finish(ctx, o.id, model.OperationStatusFailed, nil, err.Error()); ferr != nil {
		o.logger.Warn("failed to finish operation", "operation_id", o.id, "error", ferr)
	}
}
