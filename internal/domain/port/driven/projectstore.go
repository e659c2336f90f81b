package driven

import (
	"context"

	"github.com/jmbish04/gh-bot/internal/domain/model"
)

// ProjectStore defines the driven port for research sweep results.
type ProjectStore interface {
	// Upsert inserts or refreshes a project. created is true when the
	// project had not been seen before.
	Upsert(ctx context.Context, p model.Project) (created bool, err error)
	SetSummary(ctx context.Context, fullName, summary string) error
	List(ctx context.Context, minScore float64, limit int) ([]model.Project, error)
	Count(ctx context.Context) (int, error)
}
