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

var seededBots = []string{
	"coderabbitai",
	"copilot-pull-request-reviewer[bot]",
	"gemini-code-assist[bot]",
	"github-actions[bot]",
}

func TestBotConfigRepo_SeededDefaults(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBotConfigRepo(db)
	ctx := context.Background()

	configs, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, configs, len(seededBots))

	// Ordered alphabetically by username
	for i, name := range seededBots {
		assert.Equal(t, name, configs[i].Username)
		assert.NotZero(t, configs[i].ID)
		assert.False(t, configs[i].AddedAt.IsZero())
	}
}

func TestBotConfigRepo_AddAndListAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBotConfigRepo(db)
	ctx := context.Background()

	added, err := repo.Add(ctx, model.BotConfig{
		Username: "dependabot[bot]",
		AddedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NotZero(t, added.ID)
	assert.Equal(t, "dependabot[bot]", added.Username)

	usernames, err := repo.GetUsernames(ctx)
	require.NoError(t, err)
	require.Len(t, usernames, len(seededBots)+1)

	// dependabot[bot] sorts between copilot-pull-request-reviewer[bot] and gemini-code-assist[bot]
	assert.Equal(t, "dependabot[bot]", usernames[2])
}

func TestBotConfigRepo_AddDuplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBotConfigRepo(db)
	ctx := context.Background()

	_, err := repo.Add(ctx, model.BotConfig{Username: "coderabbitai"})
	require.Error(t, err, "adding duplicate username should fail")
	assert.ErrorIs(t, err, driven.ErrBotAlreadyExists)
}

func TestBotConfigRepo_Remove(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBotConfigRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Remove(ctx, "github-actions[bot]"))

	usernames, err := repo.GetUsernames(ctx)
	require.NoError(t, err)
	assert.NotContains(t, usernames, "github-actions[bot]")
	assert.Len(t, usernames, len(seededBots)-1)
}

func TestBotConfigRepo_RemoveNonexistent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBotConfigRepo(db)
	ctx := context.Background()

	err := repo.Remove(ctx, "nonexistent-bot")
	require.Error(t, err, "removing nonexistent username should fail")
	assert.ErrorIs(t, err, driven.ErrBotNotFound)
}
