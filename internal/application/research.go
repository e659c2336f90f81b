package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// ResearchConfig configures the research sweep.
type ResearchConfig struct {
	Queries      []string
	MaxResults   int
	SummarizeTop int
	// Interval between sweeps. Zero disables the periodic sweep; manual runs
	// still work.
	Interval time.Duration
	// SearchEvery paces search API calls.
	SearchEvery time.Duration
}

// ResearchService periodically searches GitHub for repositories matching the
// configured queries, scores them and keeps a catalog with short summaries.
type ResearchService struct {
	clients driven.GitHubClientFactory
	store   driven.ProjectStore
	llm     driven.TextGenerator
	limiter *rate.Limiter
	cfg     ResearchConfig
	runCh   chan struct{}
	logger  *slog.Logger

	mu      sync.RWMutex
	lastRun model.ResearchRun
}

// NewResearchService creates a ResearchService. llm may be nil.
func NewResearchService(
	clients driven.GitHubClientFactory,
	store driven.ProjectStore,
	llm driven.TextGenerator,
	cfg ResearchConfig,
	logger *slog.Logger,
) *ResearchService {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 30
	}
	if cfg.SearchEvery <= 0 {
		cfg.SearchEvery = 2 * time.Second
	}
	return &ResearchService{
		clients: clients,
		store:   store,
		llm:     llm,
		limiter: rate.NewLimiter(rate.Every(cfg.SearchEvery), 1),
		cfg:     cfg,
		runCh:   make(chan struct{}, 1),
		logger:  logger,
	}
}

// Start runs the sweep loop until ctx is canceled. With a zero interval it
// only serves manual triggers.
func (s *ResearchService) Start(ctx context.Context) {
	var tick <-chan time.Time
	if s.cfg.Interval > 0 {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C

		if err := s.Sweep(ctx); err != nil {
			s.logger.Error("initial research sweep failed", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("research service stopped")
			return
		case <-tick:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("research sweep failed", "error", err)
			}
		case <-s.runCh:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("manual research sweep failed", "error", err)
			}
		}
	}
}

// Trigger requests a sweep from the running loop. It returns false if a
// request is already pending.
func (s *ResearchService) Trigger() bool {
	select {
	case s.runCh <- struct{}{}:
		return true
	default:
		return false
	}
}

// Status returns a snapshot of the most recent sweep.
func (s *ResearchService) Status() model.ResearchRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// Results returns cataloged projects scoring at least minScore.
func (s *ResearchService) Results(ctx context.Context, minScore float64, limit int) ([]model.Project, error) {
	return s.store.List(ctx, minScore, limit)
}

// Sweep runs every query once, upserts the results and summarizes the best
// new projects.
func (s *ResearchService) Sweep(ctx context.Context) error {
	if len(s.cfg.Queries) == 0 {
		return errors.New("no research queries configured")
	}

	start := time.Now()
	s.mu.Lock()
	if s.lastRun.InProgress {
		s.mu.Unlock()
		return errors.New("research sweep already in progress")
	}
	s.lastRun = model.ResearchRun{StartedAt: start.UTC(), InProgress: true}
	s.mu.Unlock()

	run, err := s.sweep(ctx)
	run.StartedAt = start.UTC()
	run.FinishedAt = time.Now().UTC()
	if err != nil {
		run.LastError = err.Error()
	}

	s.mu.Lock()
	s.lastRun = run
	s.mu.Unlock()

	s.logger.Info("research sweep complete",
		"queries", run.Queries,
		"discovered", run.Discovered,
		"summarized", run.Summarized,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return err
}

func (s *ResearchService) sweep(ctx context.Context) (model.ResearchRun, error) {
	var run model.ResearchRun

	gh, err := s.clients.ForInstallation(ctx, 0)
	if err != nil {
		return run, fmt.Errorf("resolve github client: %w", err)
	}

	var fresh []model.Project
	var searchErrors int
	for _, query := range s.cfg.Queries {
		if err := s.limiter.Wait(ctx); err != nil {
			return run, err
		}
		run.Queries++

		projects, err := gh.SearchRepositories(ctx, query, s.cfg.MaxResults)
		if err != nil {
			s.logger.Error("research search failed", "query", query, "error", err)
			searchErrors++
			continue
		}

		for _, p := range projects {
			p.Query = query
			p.Score = ScoreProject(p, query, time.Now())
			created, err := s.store.Upsert(ctx, p)
			if err != nil {
				s.logger.Error("project upsert failed", "project", p.FullName, "error", err)
				continue
			}
			if created {
				run.Discovered++
				fresh = append(fresh, p)
			}
		}
	}

	run.Summarized = s.summarize(ctx, fresh)

	if searchErrors == len(s.cfg.Queries) {
		return run, fmt.Errorf("all %d research queries failed", searchErrors)
	}
	return run, nil
}

// summarize writes summaries for the highest scoring new projects.
func (s *ResearchService) summarize(ctx context.Context, fresh []model.Project) int {
	top := s.cfg.SummarizeTop
	if top <= 0 || len(fresh) == 0 {
		return 0
	}

	ranked := append([]model.Project(nil), fresh...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > top {
		ranked = ranked[:top]
	}

	var done int
	for _, p := range ranked {
		summary := fallbackProjectSummary(p)
		if s.llm != nil {
			out, err := s.llm.Generate(ctx, projectPrompt(p))
			if err != nil {
				s.logger.Warn("project summary failed, using fallback", "project", p.FullName, "error", err)
			} else if out = strings.TrimSpace(out); out != "" {
				summary = out
			}
		}
		if err := s.store.SetSummary(ctx, p.FullName, summary); err != nil {
			s.logger.Error("store project summary failed", "project", p.FullName, "error", err)
			continue
		}
		done++
	}
	return done
}

// ScoreProject rates a search hit by popularity, recent activity and how
// well its name and description match the query terms.
func ScoreProject(p model.Project, query string, now time.Time) float64 {
	score := math.Log10(float64(p.Stars)+1) * 2

	if !p.PushedAt.IsZero() {
		switch age := now.Sub(p.PushedAt); {
		case age <= 30*24*time.Hour:
			score += 2
		case age <= 180*24*time.Hour:
			score++
		}
	}

	haystack := strings.ToLower(p.FullName + " " + p.Description + " " + strings.Join(p.Topics, " "))
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(term, ":") {
			continue
		}
		if strings.Contains(haystack, term) {
			score += 0.5
		}
	}

	return math.Round(score*100) / 100
}

func projectPrompt(p model.Project) string {
	return fmt.Sprintf("In two sentences, describe what the GitHub repository %s does and who would use it.\n\n"+
		"Description: %s\nLanguage: %s\nTopics: %s\nStars: %d",
		p.FullName, p.Description, p.Language, strings.Join(p.Topics, ", "), p.Stars)
}

func fallbackProjectSummary(p model.Project) string {
	desc := strings.TrimSpace(p.Description)
	if desc == "" {
		desc = "No description provided."
	}
	lang := p.Language
	if lang == "" {
		lang = "unknown language"
	}
	return fmt.Sprintf("%s (%s, %d stars)", desc, lang, p.Stars)
}
