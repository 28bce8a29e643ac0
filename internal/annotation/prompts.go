package annotation

import (
	"fmt"

	"github.com/insighthub/engine/internal/capability"
)

// Extraction prompt templates. Each poses one narrow question and pins the
// answer format, since generator output is consumed by strict parsers. The
// feedback text always follows capability.FeedbackMarker.

func sentimentPrompt(rawText string) string {
	return fmt.Sprintf(
		"Rate the overall sentiment of this customer feedback as a single number between -1.0 (very negative) and 1.0 (very positive). Respond with the number only.\n\n%s %s",
		capability.FeedbackMarker, rawText,
	)
}

func urgencyPrompt(rawText string) string {
	return fmt.Sprintf(
		"Classify the urgency of this customer feedback as exactly one of: low, medium, high, critical. Respond with the single word only.\n\n%s %s",
		capability.FeedbackMarker, rawText,
	)
}

func categoriesPrompt(rawText string) string {
	return fmt.Sprintf(
		"List the issue categories this customer feedback belongs to, chosen from: technical, billing, shipping, product, other. Respond with a comma-separated list only.\n\n%s %s",
		capability.FeedbackMarker, rawText,
	)
}

func themesPrompt(rawText string) string {
	return fmt.Sprintf(
		"List up to three short recurring themes present in this customer feedback, such as stability or billing accuracy. Respond with a comma-separated list only.\n\n%s %s",
		capability.FeedbackMarker, rawText,
	)
}

func summaryPrompt(rawText string) string {
	return fmt.Sprintf(
		"Summarize this customer feedback in one short sentence.\n\n%s %s",
		capability.FeedbackMarker, rawText,
	)
}

func actionItemsPrompt(rawText string) string {
	return fmt.Sprintf(
		"List the concrete action items a support team should take in response to this customer feedback, one per line.\n\n%s %s",
		capability.FeedbackMarker, rawText,
	)
}
