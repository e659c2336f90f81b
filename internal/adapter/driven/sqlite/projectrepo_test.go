package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

func TestProjectRepo_UpsertKeepsSummaryAndFirstSeen(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProjectRepo(db)
	ctx := context.Background()

	p := model.Project{
		FullName: "acme/reviewer",
		URL:      "https://github.com/acme/reviewer",
		Stars:    100,
		Topics:   []string{"bot"},
		Score:    4.5,
		PushedAt: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}

	created, err := repo.Upsert(ctx, p)
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, repo.SetSummary(ctx, "acme/reviewer", "A review bot."))

	first, err := repo.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	p.Stars = 250
	p.Score = 5.1
	created, err = repo.Upsert(ctx, p)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 250, got[0].Stars)
	assert.InDelta(t, 5.1, got[0].Score, 0.001)
	assert.Equal(t, "A review bot.", got[0].Summary)
	assert.Equal(t, []string{"bot"}, got[0].Topics)
	assert.True(t, first[0].FirstSeenAt.Equal(got[0].FirstSeenAt))
	assert.Equal(t, 2026, got[0].PushedAt.Year())
}

func TestProjectRepo_ListByScore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProjectRepo(db)
	ctx := context.Background()

	for name, score := range map[string]float64{"a/low": 1, "a/mid": 3, "a/high": 6} {
		_, err := repo.Upsert(ctx, model.Project{FullName: name, URL: "https://github.com/" + name, Score: score})
		require.NoError(t, err)
	}

	got, err := repo.List(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a/high", got[0].FullName)
	assert.Equal(t, "a/mid", got[1].FullName)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestProjectRepo_SetSummaryMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProjectRepo(db)

	err := repo.SetSummary(context.Background(), "nobody/nothing", "x")
	assert.ErrorIs(t, err, driven.ErrNotFound)
}
