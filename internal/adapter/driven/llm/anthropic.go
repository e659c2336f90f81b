// Package llm implements the TextGenerator port with the Anthropic Messages API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"

	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TextGenerator = (*Generator)(nil)

// ErrEmptyResponse is returned when the model answers without any text.
var ErrEmptyResponse = errors.New("model returned no text")

// Config configures a Generator. Zero values fall back to the defaults below.
type Config struct {
	APIKey        string
	Model         string
	MaxTokens     int64
	Timeout       time.Duration
	MaxConcurrent int64
	MaxRetries    int
	BaseURL       string
	Logger        *slog.Logger
}

const (
	DefaultModel         = "claude-3-5-haiku-latest"
	DefaultMaxTokens     = 1024
	DefaultTimeout       = 60 * time.Second
	DefaultMaxConcurrent = 4
)

// Generator sends single-turn prompts to Claude. Concurrent calls are capped
// by a weighted semaphore.
type Generator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	sem       *semaphore.Weighted
	logger    *slog.Logger
}

// NewGenerator builds a Generator. An empty API key is an error so callers
// can decide to run without an LLM instead.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Generator{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:    cfg.Logger,
	}, nil
}

// Generate returns the model's text answer to prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for llm slot: %w", err)
	}
	defer g.sem.Release(1)

	start := time.Now()
	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	g.logger.Debug("llm call",
		"model", g.model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
