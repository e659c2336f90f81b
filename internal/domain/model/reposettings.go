package model

// RepoSettings holds per-repository policy overrides for the workflow.
// A nil pointer means "use the global default".
type RepoSettings struct {
	RepoFullName     string
	AutoApplyEnabled *bool
	AutoApplyCap     *int
}
