package services

import (
	"fmt"
	"strings"
)

// replyRules are appended to every prompt regardless of tone.
var replyRules = []string{
	"Be polite but not robotic.",
	`Do not use "Dear Valued Customer".`,
	"Keep it under 50 words.",
	"If they are angry, apologize and ask them to email support.",
}

// BuildPrompt composes the single generation prompt. The review text is
// embedded verbatim.
func BuildPrompt(businessType string, tone Tone, reviewText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the owner of a %s.\n", strings.TrimSpace(businessType))
	fmt.Fprintf(&b, "%s Reply to this customer review.\n\n", tone.Instruction())
	b.WriteString("RULES:\n")
	for _, r := range replyRules {
		b.WriteString("- ")
		b.WriteString(r)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nCUSTOMER REVIEW: \"%s\"\n", reviewText)
	return b.String()
}
