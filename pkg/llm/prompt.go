package llm

import (
	"encoding/json"
	"strings"
)

// buildScoringUserPrompt assembles the user-turn payload for a scoreEvents
// call: system context plus the event batch as JSON (§4.F).
func buildScoringUserPrompt(events []EventForScoring, systemDescription string, sourceLabels []string) string {
	var b strings.Builder
	b.WriteString("System description: ")
	b.WriteString(systemDescription)
	b.WriteString("\nSources: ")
	b.WriteString(strings.Join(sourceLabels, ", "))
	b.WriteString("\nEvents:\n")
	payload, _ := json.Marshal(events)
	b.Write(payload)
	return b.String()
}

// buildMetaUserPrompt assembles the user-turn payload for a metaAnalyze
// call: system context, prior-summary/open-finding context, and the
// window's event batch as JSON (§4.H steps 9-12).
func buildMetaUserPrompt(events []EventForScoring, systemDescription string, sourceLabels []string, metaCtx MetaAnalyzeContext) string {
	var b strings.Builder
	b.WriteString("System description: ")
	b.WriteString(systemDescription)
	b.WriteString("\nSources: ")
	b.WriteString(strings.Join(sourceLabels, ", "))
	b.WriteString("\nPrevious window summaries:\n")
	for _, s := range metaCtx.PreviousSummaries {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	b.WriteString("Open findings:\n")
	findingsPayload, _ := json.Marshal(metaCtx.OpenFindings)
	b.Write(findingsPayload)
	b.WriteString("\nWindow events:\n")
	eventsPayload, _ := json.Marshal(events)
	b.Write(eventsPayload)
	return b.String()
}
