package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoSettingsStore = (*RepoSettingsRepo)(nil)

// RepoSettingsRepo is the SQLite implementation of the RepoSettingsStore port interface.
type RepoSettingsRepo struct {
	db *DB
}

// NewRepoSettingsRepo creates a new RepoSettingsRepo backed by the given DB.
func NewRepoSettingsRepo(db *DB) *RepoSettingsRepo {
	return &RepoSettingsRepo{db: db}
}

// GetSettings retrieves per-repository settings. Returns (nil, nil) if no
// settings exist for the repository. NULL columns map to nil overrides.
func (r *RepoSettingsRepo) GetSettings(ctx context.Context, repoFullName string) (*model.RepoSettings, error) {
	const query = `
		SELECT repo_full_name, auto_apply_enabled, auto_apply_cap
		FROM repo_settings
		WHERE repo_full_name = ?
	`

	var (
		s       model.RepoSettings
		enabled sql.NullBool
		capN    sql.NullInt64
	)

	err := r.db.Reader.QueryRowContext(ctx, query, repoFullName).Scan(&s.RepoFullName, &enabled, &capN)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings for %s: %w", repoFullName, err)
	}

	if enabled.Valid {
		s.AutoApplyEnabled = &enabled.Bool
	}
	if capN.Valid {
		n := int(capN.Int64)
		s.AutoApplyCap = &n
	}

	return &s, nil
}

// SetSettings inserts or updates per-repository settings. On conflict both
// overrides are replaced, so a nil field clears the override.
func (r *RepoSettingsRepo) SetSettings(ctx context.Context, settings model.RepoSettings) error {
	const query = `
		INSERT INTO repo_settings (repo_full_name, auto_apply_enabled, auto_apply_cap)
		VALUES (?, ?, ?)
		ON CONFLICT(repo_full_name) DO UPDATE SET
			auto_apply_enabled = excluded.auto_apply_enabled,
			auto_apply_cap = excluded.auto_apply_cap
	`

	var enabled sql.NullBool
	if settings.AutoApplyEnabled != nil {
		enabled = sql.NullBool{Bool: *settings.AutoApplyEnabled, Valid: true}
	}
	var capN sql.NullInt64
	if settings.AutoApplyCap != nil {
		capN = sql.NullInt64{Int64: int64(*settings.AutoApplyCap), Valid: true}
	}

	_, err := r.db.Writer.ExecContext(ctx, query, settings.RepoFullName, enabled, capN)
	if err != nil {
		return fmt.Errorf("set settings for %s: %w", settings.RepoFullName, err)
	}

	return nil
}
