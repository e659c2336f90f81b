package model

import "time"

// BestPracticeStatus is the review state of a bookmarked suggestion.
type BestPracticeStatus string

const (
	BestPracticePending  BestPracticeStatus = "pending"
	BestPracticeApproved BestPracticeStatus = "approved"
	BestPracticeRejected BestPracticeStatus = "rejected"
)

// BestPractice is a bookmarked suggestion kept as a reusable guideline.
type BestPractice struct {
	ID         int64
	Repo       string
	PRNumber   int
	Author     string
	Suggestion string
	FilePath   string
	Category   string
	Tags       []string
	Status     BestPracticeStatus
	CreatedAt  time.Time
}

// IssueLink records an issue the bot opened on behalf of a pull request.
type IssueLink struct {
	ID          int64
	Repo        string
	PRNumber    int
	IssueNumber int
	IssueURL    string
	Command     CommandName
	FilePath    string
	CreatedAt   time.Time
}
