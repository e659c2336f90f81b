package model

import "time"

// BotConfig represents a GitHub username treated as a review bot.
type BotConfig struct {
	ID       int64
	Username string
	AddedAt  time.Time
}
