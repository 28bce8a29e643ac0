package annotation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/insighthub/engine/internal/models"
)

var (
	numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	bulletRe = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s*`)
	splitRe  = regexp.MustCompile(`[\n,;]+`)
)

// ParseSentiment extracts the first numeric token from generator output and
// clamps it to [-1, 1]. clamped reports that the value fell outside the range
// so the caller can record the degradation; ok is false when no number is
// present.
func ParseSentiment(output string) (score float64, clamped, ok bool) {
	match := numberRe.FindString(output)
	if match == "" {
		return 0, false, false
	}

	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false, false
	}

	if value > 1 {
		return 1, true, true
	}

	if value < -1 {
		return -1, true, true
	}

	return value, false, true
}

// ParseUrgency finds a recognized urgency level in generator output,
// preferring the highest level mentioned. ok is false when none is present.
func ParseUrgency(output string) (models.Urgency, bool) {
	lower := strings.ToLower(output)

	for _, level := range []models.Urgency{
		models.UrgencyCritical, models.UrgencyHigh, models.UrgencyMedium, models.UrgencyLow,
	} {
		if strings.Contains(lower, string(level)) {
			return level, true
		}
	}

	return "", false
}

// ParseList splits generator output on newlines, commas and semicolons,
// strips bullet markers, and deduplicates while preserving first-seen order.
func ParseList(output string) []string {
	var (
		items []string
		seen  = make(map[string]struct{})
	)

	for _, part := range splitRe.Split(output, -1) {
		item := strings.TrimSpace(bulletRe.ReplaceAllString(strings.TrimSpace(part), ""))
		if item == "" {
			continue
		}

		key := strings.ToLower(item)
		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}
		items = append(items, item)
	}

	return items
}

// normalizeSpace lowercases s and collapses internal whitespace.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// TruncateSummary trims whitespace and caps the summary at maxChars runes.
func TruncateSummary(summary string, maxChars int) string {
	summary = strings.TrimSpace(summary)
	if maxChars <= 0 {
		return summary
	}

	runes := []rune(summary)
	if len(runes) <= maxChars {
		return summary
	}

	return string(runes[:maxChars])
}
