package models

import "time"

// Urgency is the triage level assigned to a feedback item.
type Urgency string

// Urgency levels, lowest to highest.
const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Valid reports whether u is a recognized urgency level.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	default:
		return false
	}
}

// Degradation flag values recorded on an Insight when one attribute
// extraction produced unusable output. The item still commits.
const (
	DegradedSentiment   = "sentiment"
	DegradedUrgency     = "urgency"
	DegradedCategories  = "categories"
	DegradedThemes      = "themes"
	DegradedSummary     = "summary"
	DegradedActionItems = "action_items"
	DegradedEmbedding   = "embedding"
)

// Insight is the structured annotation derived from one feedback item.
// It is 1:1 with FeedbackItem and immutable after commit; only the explicit
// reset path removes it. Embedding is nil when the embedding step degraded;
// such insights are excluded from similarity search but remain visible to
// trend aggregation.
type Insight struct {
	FeedbackID     string    `json:"feedback_id"`
	SentimentScore float64   `json:"sentiment_score"`
	UrgencyLevel   Urgency   `json:"urgency_level"`
	Categories     []string  `json:"categories"`
	Themes         []string  `json:"themes"`
	Summary        string    `json:"summary"`
	ActionItems    []string  `json:"action_items"`
	Degraded       []string  `json:"degraded,omitempty"`
	Embedding      []float32 `json:"-"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// RunReport summarizes one processing batch run.
// Retryable items stay unprocessed and are picked up by the next run.
type RunReport struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Retryable int `json:"retryable"`
}
