package core

import (
	"fmt"
	"strings"
)

// RequirementsExtractionMaxTokens is the token budget for the prompt
// Decide builds for a fresh Initialize command (spec §4.2).
const RequirementsExtractionMaxTokens = 4000

// PhaseTurnMaxTokens is the token budget for the prompt Decide builds for
// each StartTurn command (spec §4.2).
const PhaseTurnMaxTokens = 8000

// requirementsExtractionPrompt is the stable template asking the LLM to
// return a JSON array of checklist items tagged with phase, description,
// and verification criterion.
func requirementsExtractionPrompt(userPrompt string) string {
	var b strings.Builder
	b.WriteString("You are planning a multi-phase software generation run.\n")
	b.WriteString("Given the following request, return a JSON array of checklist items.\n")
	b.WriteString("Each item must have: \"phase\" (one of requirements, design, implementation, ")
	b.WriteString("testing, documentation, verification), \"description\", and \"verification\" ")
	b.WriteString("(a concrete criterion for marking the item complete).\n\n")
	b.WriteString("Request:\n")
	b.WriteString(userPrompt)
	return b.String()
}

// phasePromptBuilder embeds the current phase, turn, confidence
// percentage, the original prompt, the phase checklist (completed and
// remaining), and artifacts produced in this phase (spec §4.2).
func phasePromptBuilder(s State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Phase: %s (turn %d)\n", s.Phase, s.Turn)
	fmt.Fprintf(&b, "Confidence: %.0f%%\n\n", OverallScore(s.Confidence)*100)
	b.WriteString("Original request:\n")
	b.WriteString(s.Prompt)
	b.WriteString("\n\n")

	items := s.PhaseItems(s.Phase)
	b.WriteString("Checklist for this phase:\n")
	for _, item := range items {
		status := "[ ]"
		if item.Completed {
			status = "[x]"
		}
		fmt.Fprintf(&b, "%s %s: %s\n", status, item.ID, item.Description)
	}
	b.WriteString("When an item's verification criterion is met, reply with a line of the form\n")
	b.WriteString("CHECKLIST_COMPLETE: <item id> <evidence>\n")

	var phaseArtifacts []Artifact
	for _, a := range s.Artifacts {
		if a.Phase == s.Phase {
			phaseArtifacts = append(phaseArtifacts, a)
		}
	}
	if len(phaseArtifacts) > 0 {
		b.WriteString("\nArtifacts produced this phase:\n")
		for _, a := range phaseArtifacts {
			fmt.Fprintf(&b, "- %s (%s)\n", a.Path, a.Hash)
		}
	}

	return b.String()
}
