package model

import "time"

// ReviewComment represents a comment on a specific line within a pull request review.
type ReviewComment struct {
	ID          int64
	ReviewID    int64
	Author      string
	AuthorIsBot bool
	Body        string
	Path        string
	Line        int
	StartLine   int
	DiffHunk    string
	CommitID    string
	URL         string
	InReplyToID *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IssueComment represents a general PR-level comment from the Issues API.
type IssueComment struct {
	ID        int64
	Author    string
	Body      string
	URL       string
	CreatedAt time.Time
}

// Issue is a GitHub issue created by the bot.
type Issue struct {
	Number int
	URL    string
	Title  string
}
