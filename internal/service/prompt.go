package service

import (
	"fmt"
	"strings"

	"miniquest-server/shared/models"
)

// formatTranscript renders steps as alternating "Child:" / "Storyteller:" lines.
// The synthetic opening step has no child line.
func formatTranscript(steps []models.QuestStep) string {
	var b strings.Builder
	for _, step := range steps {
		if !step.IsInitial() && strings.TrimSpace(step.ChildInput) != "" {
			fmt.Fprintf(&b, "Child: %s\n", strings.TrimSpace(step.ChildInput))
		}
		fmt.Fprintf(&b, "Storyteller: %s\n", strings.TrimSpace(step.Narration))
	}
	return b.String()
}

// buildTurnPrompt combines recent history, the new child input and the directive
// into the user message of a generation request.
func buildTurnPrompt(directive string, history []models.QuestStep, childInput string) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Story so far:\n")
		b.WriteString(formatTranscript(history))
		b.WriteString("\n")
	}
	if input := strings.TrimSpace(childInput); input != "" {
		fmt.Fprintf(&b, "The child just said: %q\n", input)
	}
	fmt.Fprintf(&b, "Narrate next: %s\n", directive)
	b.WriteString("Keep it to one or two short sentences.")
	return b.String()
}

// buildRecapPrompt wraps the full transcript for a recap request.
func buildRecapPrompt(steps []models.QuestStep) string {
	return "Here is the whole adventure:\n" + formatTranscript(steps) + "\nWrite the recap now."
}
