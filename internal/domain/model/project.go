package model

import "time"

// Project is a repository discovered by the research sweep.
type Project struct {
	FullName    string
	URL         string
	Description string
	Language    string
	Stars       int
	Topics      []string
	Query       string
	Score       float64
	Summary     string
	PushedAt    time.Time
	FirstSeenAt time.Time
	UpdatedAt   time.Time
}

// ResearchRun summarizes one research sweep.
type ResearchRun struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Queries    int
	Discovered int
	Summarized int
	LastError  string
	InProgress bool
}
