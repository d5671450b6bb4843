package domain

import "time"

// ViralitySnapshot is one external social-popularity measurement for a
// topic. The signal source is append-only and queried newest-first; the
// market core never writes these.
type ViralitySnapshot struct {
	TopicID         string
	ViralityIndex   float64 // popularity index, typically 0-100
	Velocity        float64 // rate of change of the index
	SentimentMean   float64 // mean sentiment in [-1, 1]
	EngagementTotal float64 // absolute engagement count in the window
	Timestamp       time.Time
}
