package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// ErrNoCredentials is returned when no client builder is configured.
var ErrNoCredentials = errors.New("no github credentials configured")

// ClientBuilder creates a GitHub client scoped to one installation.
type ClientBuilder func(installationID int64) (driven.GitHubClient, error)

// GitHubClientProvider resolves and caches GitHub clients per installation.
// The builder can be hot-swapped at runtime so rotated credentials take
// effect without a restart.
type GitHubClientProvider struct {
	mu      sync.RWMutex
	build   ClientBuilder
	clients map[int64]driven.GitHubClient
}

var _ driven.GitHubClientFactory = (*GitHubClientProvider)(nil)

// NewGitHubClientProvider creates a provider. build may be nil if no
// credentials are available at startup.
func NewGitHubClientProvider(build ClientBuilder) *GitHubClientProvider {
	return &GitHubClientProvider{
		build:   build,
		clients: make(map[int64]driven.GitHubClient),
	}
}

// ForInstallation returns the cached client for installationID, building it
// on first use.
func (p *GitHubClientProvider) ForInstallation(_ context.Context, installationID int64) (driven.GitHubClient, error) {
	p.mu.RLock()
	client, ok := p.clients[installationID]
	p.mu.RUnlock()
	if ok {
		return client, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[installationID]; ok {
		return client, nil
	}
	if p.build == nil {
		return nil, ErrNoCredentials
	}

	client, err := p.build(installationID)
	if err != nil {
		return nil, fmt.Errorf("build client for installation %d: %w", installationID, err)
	}
	p.clients[installationID] = client
	return client, nil
}

// Replace swaps the builder and drops every cached client. The next call to
// ForInstallation builds with the new credentials.
func (p *GitHubClientProvider) Replace(build ClientBuilder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.build = build
	p.clients = make(map[int64]driven.GitHubClient)
}

// HasClient returns true if a builder is currently configured.
func (p *GitHubClientProvider) HasClient() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.build != nil
}
