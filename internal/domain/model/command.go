package model

// CommandName is the canonical identifier of an explicit command.
type CommandName string

const (
	CommandImplement                  CommandName = "implement"
	CommandCreateIssue                CommandName = "create_issue"
	CommandBookmarkSuggestion         CommandName = "bookmark_suggestion"
	CommandExtractSuggestions         CommandName = "extract_suggestions"
	CommandExtractSuggestionsToIssues CommandName = "extract_suggestions_to_issues"
	CommandHelp                       CommandName = "help"
	CommandUnknown                    CommandName = "unknown"

	// Legacy and implicit paths are recorded in the ledger under these names.
	CommandApply     CommandName = "apply"
	CommandSummarize CommandName = "summarize"
	CommandAutoApply CommandName = "auto_apply"
)

// CommandArgs holds options inferred from the trigger phrase.
type CommandArgs struct {
	AssignToCopilot bool `json:"assignToCopilot,omitempty"`
}

// Command is a parsed unit of explicit work derived from one trigger string.
type Command struct {
	Name    CommandName `json:"command"`
	Args    CommandArgs `json:"args"`
	Trigger string      `json:"trigger"`
}
