package model

import "sort"

// FileChangeSet maps a repository-relative path to its new full content.
// Every entry differs from the file's original content.
type FileChangeSet map[string]string

// Paths returns the changed paths in sorted order.
func (s FileChangeSet) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Merge copies every entry of other into s, overwriting duplicates.
func (s FileChangeSet) Merge(other FileChangeSet) {
	for p, c := range other {
		s[p] = c
	}
}

// CommitPrecondition makes a commit safe under concurrent writers: the
// branch must still point at ExpectedHeadSHA when the ref is updated.
type CommitPrecondition struct {
	Branch          string
	ExpectedHeadSHA string
}

// CommitResult describes a commit created by the Commit Applier.
type CommitResult struct {
	SHA          string
	URL          string
	FilesChanged []string
}
