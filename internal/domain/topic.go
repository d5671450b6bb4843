package domain

import "time"

// Topic is read-only metadata from the topic registry, used when a trending
// topic first qualifies for listing.
type Topic struct {
	TopicID   string   // registry identifier
	Title     string   // human-readable trend title
	Category  string   // registry category (celebrity, music, ...)
	Region    string   // ISO-like 2-letter region code
	Keywords  []string // associated search keywords
	Platforms []string // platforms the trend was observed on
	CreatedAt time.Time
	UpdatedAt time.Time
}
