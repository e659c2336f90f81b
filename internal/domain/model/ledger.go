package model

import "time"

// CommandStatus is the lifecycle state of a CommandRecord.
// Transitions only move forward: queued -> working -> completed|failed.
type CommandStatus string

const (
	CommandStatusQueued    CommandStatus = "queued"
	CommandStatusWorking   CommandStatus = "working"
	CommandStatusCompleted CommandStatus = "completed"
	CommandStatusFailed    CommandStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s CommandStatus) IsTerminal() bool {
	return s == CommandStatusCompleted || s == CommandStatusFailed
}

// CanTransitionTo reports whether moving from s to next is a forward step.
func (s CommandStatus) CanTransitionTo(next CommandStatus) bool {
	switch s {
	case CommandStatusQueued:
		return next == CommandStatusWorking || next.IsTerminal()
	case CommandStatusWorking:
		return next.IsTerminal()
	}
	return false
}

// CommandRecord is the persisted audit record of one Command's execution.
// CompletedAt is set iff Status is terminal.
type CommandRecord struct {
	ID              int64
	DeliveryID      string
	Repo            string
	PRNumber        int
	Author          string
	Command         CommandName
	Args            CommandArgs
	Status          CommandStatus
	PromptGenerated string
	ResultData      map[string]any
	ErrorMessage    string
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

// OperationStatus is the lifecycle state of an OperationProgress.
type OperationStatus string

const (
	OperationStatusStarted   OperationStatus = "started"
	OperationStatusRunning   OperationStatus = "running"
	OperationStatusCompleted OperationStatus = "completed"
	OperationStatusFailed    OperationStatus = "failed"
)

// IsTerminal reports whether the operation has finished.
func (s OperationStatus) IsTerminal() bool {
	return s == OperationStatusCompleted || s == OperationStatusFailed
}

// OperationProgress tracks step-level progress of a long-running command for
// the live dashboard.
type OperationProgress struct {
	OperationID     string
	OperationType   string
	Repo            string
	PRNumber        int
	Status          OperationStatus
	CurrentStep     string
	ProgressPercent int
	StepsCompleted  int
	StepsTotal      int
	ResultData      map[string]any
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
