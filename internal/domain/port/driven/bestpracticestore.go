package driven

import (
	"context"

	"github.com/jmbish04/gh-bot/internal/domain/model"
)

// BestPracticeFilter narrows List results. Zero values mean "any".
type BestPracticeFilter struct {
	Category string
	Status   model.BestPracticeStatus
	Limit    int
	Offset   int
}

// BestPracticeStore defines the driven port for bookmarked suggestions.
type BestPracticeStore interface {
	Add(ctx context.Context, bp model.BestPractice) (int64, error)
	List(ctx context.Context, filter BestPracticeFilter) ([]model.BestPractice, error)
}

// IssueLinkStore defines the driven port for issues opened by the bot.
type IssueLinkStore interface {
	Add(ctx context.Context, link model.IssueLink) error
	ListByRepo(ctx context.Context, repoFullName string, limit int) ([]model.IssueLink, error)
}
