package coach

import (
	"fmt"
	"strings"

	"github.com/helioform/coachd/internal/macros"
	"github.com/helioform/coachd/internal/memory"
	"github.com/helioform/coachd/internal/snapshot"
)

// assemblePrompt builds the full prompt for one turn: persona template
// with the context projection, then the optional memory, plan, and
// adjustment sections, the same-day history, and the new message.
func (o *Orchestrator) assemblePrompt(
	personaID string,
	uc snapshot.UserContext,
	matches []memory.SessionMatch,
	plans []memory.Plan,
	adj *macros.Adjustment,
	history []memory.Message,
	userMessage string,
) string {
	var sb strings.Builder

	sb.WriteString(o.personas.BuildPrompt(personaID, snapshot.FormatForPrompt(uc)))

	if len(matches) > 0 {
		sb.WriteString("\n\n## RELEVANT PAST CONVERSATIONS\n")
		for _, match := range matches {
			fmt.Fprintf(&sb, "### %s\n", match.Date)
			for _, m := range match.Messages {
				fmt.Fprintf(&sb, "- %s: %s\n", m.Role, m.Content)
			}
		}
	}

	if len(plans) > 0 {
		sb.WriteString("\n## ACTIVE PLANS\n")
		for _, p := range plans {
			fmt.Fprintf(&sb, "- %s (%s, created %s): %s\n",
				p.Name, p.Type, p.CreatedAt.Format("2006-01-02"), p.Details)
		}
	}

	if adj != nil {
		sb.WriteString("\n## TODAY'S MACRO ADJUSTMENT\n")
		fmt.Fprintf(&sb, "%s\n", adj.Reason)
		fmt.Fprintf(&sb, "Calories %d -> %d | P %dg -> %dg | C %dg -> %dg | F %dg -> %dg\n",
			adj.OriginalCalories, adj.AdjustedCalories,
			adj.OriginalProtein, adj.AdjustedProtein,
			adj.OriginalCarbs, adj.AdjustedCarbs,
			adj.OriginalFat, adj.AdjustedFat)
		sb.WriteString("Mention this adjustment if the user asks about food or targets today.\n")
	}

	if len(history) > 0 {
		sb.WriteString("\n## TODAY'S CONVERSATION\n")
		for _, m := range history {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
	}

	sb.WriteString("\n## NEW MESSAGE\n")
	fmt.Fprintf(&sb, "user: %s\n", userMessage)
	sb.WriteString("assistant:")

	return sb.String()
}

// summaryPrompt asks the model to condense one day's conversation.
func summaryPrompt(date string, msgs []memory.Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Condense the following coaching conversation from %s into a short summary. ", date)
	sb.WriteString("Keep concrete facts: decisions made, plans agreed, numbers discussed, and anything the user asked to be remembered. Skip pleasantries.\n\n")
	for _, m := range msgs {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	return sb.String()
}
