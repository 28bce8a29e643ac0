package models

import "time"

// ResolutionPattern is read-only reference data describing how issues in a
// category have historically been resolved. The pipeline never writes it.
type ResolutionPattern struct {
	PatternID                string    `json:"pattern_id"`
	IssueCategory            string    `json:"issue_category"`
	CommonResolution         string    `json:"common_resolution"`
	SuccessRate              float64   `json:"success_rate"`
	AvgResolutionTimeMinutes int       `json:"avg_resolution_time_minutes"`
	CreatedAt                time.Time `json:"created_at"`
}

// SearchMatch is one ranked similarity-search result. Distance is cosine
// distance (1 - cosine similarity), so lower means more similar.
// SuggestedResolution is the best known pattern for the match's leading
// category, when one exists.
type SearchMatch struct {
	FeedbackID          string             `json:"feedback_id"`
	Distance            float64            `json:"distance"`
	Summary             string             `json:"summary"`
	Categories          []string           `json:"categories"`
	SuggestedResolution *ResolutionPattern `json:"suggested_resolution,omitempty"`
}
