// Package viewmodel defines presentation-ready structs for the dashboard.
// View models decouple rendering from domain model types.
package viewmodel

// DashboardViewModel holds everything the dashboard page renders.
type DashboardViewModel struct {
	Commands      []CommandRowViewModel
	Operations    []OperationRowViewModel
	BestPractices []BestPracticeViewModel
	Research      *ResearchViewModel
	CSRFToken     string
}

// CommandRowViewModel is one ledger record.
type CommandRowViewModel struct {
	ID          int64
	Repository  string
	PRNumber    int
	PRURL       string
	Author      string
	Command     string
	Status      string
	StatusClass string
	Error       string
	// PromptHTML is sanitized HTML rendered from the generated prompt.
	PromptHTML string
	CreatedAt  string
}

// OperationRowViewModel is one tracked operation.
type OperationRowViewModel struct {
	OperationID     string
	Type            string
	Repository      string
	PRNumber        int
	Status          string
	StatusClass     string
	CurrentStep     string
	ProgressPercent int
	Steps           string
	UpdatedAt       string
}

// BestPracticeViewModel is one bookmarked suggestion.
type BestPracticeViewModel struct {
	Repository string
	PRNumber   int
	FilePath   string
	Category   string
	Status     string
	// SuggestionHTML is the suggestion with diff line classes applied.
	SuggestionHTML string
}

// ResearchViewModel summarizes the research sweep.
type ResearchViewModel struct {
	InProgress bool
	LastRun    string
	Discovered int
	Summarized int
	LastError  string
	Projects   []ProjectViewModel
}

// ProjectViewModel is one discovered project.
type ProjectViewModel struct {
	FullName    string
	URL         string
	Description string
	Language    string
	Stars       int
	Score       string
	SummaryHTML string
}
