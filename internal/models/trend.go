package models

import "time"

// Window is a calendar-aligned aggregation bucket size.
type Window string

// Supported trend windows.
const (
	WindowDay  Window = "day"
	WindowWeek Window = "week"
)

// Valid reports whether w is a supported window.
func (w Window) Valid() bool {
	return w == WindowDay || w == WindowWeek
}

// TrendPoint is one bucket of a trend series for a theme or category.
// AvgSentiment is nil when the bucket is empty. GrowthRate is
// (frequency - previous) / previous and nil when the previous bucket's
// frequency is zero or unknown (first bucket).
type TrendPoint struct {
	WindowStart  time.Time `json:"window_start"`
	Frequency    int       `json:"frequency"`
	AvgSentiment *float64  `json:"avg_sentiment,omitempty"`
	GrowthRate   *float64  `json:"growth_rate,omitempty"`
}

// CategoryCount pairs a category with its occurrence count for a period.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// DailySummary pairs one day's aggregate metrics with the generated
// executive narrative.
type DailySummary struct {
	Day       time.Time  `json:"day"`
	Stats     DailyStats `json:"stats"`
	Narrative string     `json:"narrative"`
}

// DailyStats are the aggregate metrics fed into the daily narrative summary.
type DailyStats struct {
	Day               time.Time       `json:"day"`
	TotalFeedback     int             `json:"total_feedback"`
	CriticalCount     int             `json:"critical_count"`
	AvgSentiment      *float64        `json:"avg_sentiment,omitempty"`
	TopCategories     []CategoryCount `json:"top_categories"`
	CriticalSummaries []string        `json:"critical_summaries"`
	TopThemes         []string        `json:"top_themes"`
}
