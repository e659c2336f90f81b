package model

import (
	"fmt"
	"strings"
)

// EventKind identifies the webhook-derived trigger that produced an Event.
type EventKind string

const (
	EventKindReviewComment EventKind = "review_comment"
	EventKindPRReview      EventKind = "pr_review"
	EventKindIssueComment  EventKind = "issue_comment"
	EventKindPullRequest   EventKind = "pull_request"
)

// RequiresInstallation reports whether events of this kind need an
// authenticated GitHub installation to be processed.
func (k EventKind) RequiresInstallation() bool {
	switch k {
	case EventKindReviewComment, EventKindPRReview, EventKindIssueComment, EventKindPullRequest:
		return true
	}
	return false
}

// Valid reports whether k is one of the known event kinds.
func (k EventKind) Valid() bool {
	return k.RequiresInstallation()
}

// Event is an immutable description of a single webhook-derived trigger.
// Processing steps that need a different suggestion list derive a new Event
// with WithSuggestions instead of mutating the original.
type Event struct {
	Kind           EventKind `json:"kind"`
	Repo           string    `json:"repo"`
	PRNumber       int       `json:"prNumber"`
	Author         string    `json:"author"`
	Suggestions    []string  `json:"suggestions"`
	Triggers       []string  `json:"triggers"`
	InstallationID int64     `json:"installationId"`
	CommentID      int64     `json:"commentId,omitempty"`
	FilePath       string    `json:"filePath,omitempty"`
	Line           int       `json:"line,omitempty"`
	DiffHunk       string    `json:"diffHunk,omitempty"`
	HeadRef        string    `json:"headRef,omitempty"`
	HeadSHA        string    `json:"headSha,omitempty"`
	DeliveryID     string    `json:"deliveryId"`
}

// Owner returns the repository owner, or "" if Repo is malformed.
func (e Event) Owner() string {
	owner, _, _ := SplitRepo(e.Repo)
	return owner
}

// Key identifies the pull request the event belongs to. All events with the
// same key are processed one at a time.
func (e Event) Key() string {
	return fmt.Sprintf("%s#%d", strings.ToLower(e.Repo), e.PRNumber)
}

// WithSuggestions returns a copy of e carrying the given suggestions. The
// receiver's slices are never shared with the copy.
func (e Event) WithSuggestions(suggestions []string) Event {
	derived := e
	derived.Suggestions = append([]string(nil), suggestions...)
	derived.Triggers = append([]string(nil), e.Triggers...)
	return derived
}

// WithHead returns a copy of e targeting the given branch head.
func (e Event) WithHead(ref, sha string) Event {
	derived := e.WithSuggestions(e.Suggestions)
	derived.HeadRef = ref
	derived.HeadSHA = sha
	return derived
}

// HasTriggers reports whether the event carries any command triggers.
func (e Event) HasTriggers() bool {
	return len(e.Triggers) > 0
}

// SplitRepo splits an "owner/repo" string into its two components.
func SplitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.Contains(parts[1], "/") {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
