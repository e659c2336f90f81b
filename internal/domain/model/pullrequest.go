package model

import "time"

// PullRequest is the subset of GitHub pull request data the bot works with.
type PullRequest struct {
	Number       int
	RepoFullName string
	Title        string
	Body         string
	Author       string
	State        string
	URL          string
	HeadRef      string
	HeadSHA      string
	BaseRef      string
	Additions    int
	Deletions    int
	ChangedFiles int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ChangedFile is one file touched by a pull request.
type ChangedFile struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
	Patch     string
}
