package usecase

import (
	"strings"

	"BananaBot/internal/domain"
)

// ReplyPolicy controls what denied events hear back.
type ReplyPolicy struct {
	// Mode is "skip" (silent) or "reply".
	Mode            string
	CapacityMessage string
	CooldownMessage string
}

// FormatReply renders the success reply for a published edit.
func FormatReply(instruction domain.Instruction, imageURL, narrationURL string) string {
	lines := []string{"🍌 Edit done: " + string(instruction), imageURL}
	if narrationURL != "" {
		lines = append(lines, "🔊 Narration: "+narrationURL)
	}
	return strings.Join(lines, "\n\n")
}

// NarrationText is the text read out by the narration service.
func NarrationText(instruction domain.Instruction) string {
	return "Edit applied: " + string(instruction)
}

// DenyReply returns the reply for a denied event, or "" when it stays silent.
// Allowlist denials are never answered.
func (p ReplyPolicy) DenyReply(decision domain.Decision) string {
	if p.Mode != "reply" {
		return ""
	}
	switch decision {
	case domain.DenyCooldown:
		return p.CooldownMessage
	case domain.DenyHourlyCap, domain.DenyDailyBudget:
		return p.CapacityMessage
	default:
		return ""
	}
}
