package openai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opsmesh/contexture/ai"
)

const summarySystemPrompt = "You are an assistant that creates concise weekly " +
	"summaries for a context intelligence platform."

// itemsPerSource caps how many titles each source contributes to the prompt.
const itemsPerSource = 10

// buildSummaryPrompt renders one week's entities into the summarization prompt.
// Items are grouped by source, mirroring how readers scan a week.
func buildSummaryPrompt(req ai.SummaryRequest) string {
	bySource := make(map[string][]ai.SummaryItem)
	for _, item := range req.Items {
		bySource[item.Source] = append(bySource[item.Source], item)
	}

	sources := make([]string, 0, len(bySource))
	for source := range bySource {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following week's (%s) activities across different data sources.\n", req.WeekKey)
	b.WriteString("Create a concise but comprehensive summary that captures:\n")
	b.WriteString("1. Key themes and topics\n")
	b.WriteString("2. Important incidents or issues\n")
	b.WriteString("3. Notable accomplishments\n")
	b.WriteString("4. Key people involved\n\nData:\n")

	for _, source := range sources {
		items := bySource[source]
		fmt.Fprintf(&b, "**%s** (%d items):\n", strings.ToUpper(source), len(items))
		limit := len(items)
		if limit > itemsPerSource {
			limit = itemsPerSource
		}
		for _, item := range items[:limit] {
			title := item.Title
			if len(title) > 100 {
				title = title[:100]
			}
			fmt.Fprintf(&b, "- %s\n", title)
		}
	}

	b.WriteString("\nProvide a 2-3 paragraph summary that would help someone quickly understand what happened this week.")
	return b.String()
}
