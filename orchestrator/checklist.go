package orchestrator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dshills/orchestrator-core/core"
)

// requirementsItem is the wire shape requirementsExtractionPrompt asks the
// LLM to return: a JSON array of {phase, description, verification}.
type requirementsItem struct {
	Phase        string `json:"phase"`
	Description  string `json:"description"`
	Verification string `json:"verification"`
}

// parseChecklistItems extracts the checklist array from an Initialize
// turn's LLM response. Models routinely wrap JSON in prose or a fenced
// code block, so this looks for the outermost '[' ... ']' span rather
// than requiring the whole content to be valid JSON on its own.
func parseChecklistItems(content string, now time.Time, nextID func() string) ([]core.ChecklistItem, error) {
	start := strings.IndexByte(content, '[')
	end := strings.LastIndexByte(content, ']')
	if start < 0 || end < start {
		return nil, fmt.Errorf("orchestrator: no JSON array found in requirements response")
	}

	var raw []requirementsItem
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("orchestrator: parse checklist items: %w", err)
	}

	items := make([]core.ChecklistItem, 0, len(raw))
	for _, r := range raw {
		phase := core.Phase(r.Phase)
		if core.PhaseIndex(phase) < 0 {
			continue // unknown phase tag, skip rather than corrupt state
		}
		items = append(items, core.ChecklistItem{
			ID:          nextID(),
			Phase:       phase,
			Description: r.Description,
		})
	}
	_ = now
	return items, nil
}

// checklistCompletionRe recognizes a fixed marker the phase-turn prompt
// asks the model to emit once it believes an item's verification
// criterion is satisfied: "CHECKLIST_COMPLETE: <itemId> <evidence...>".
// There is no structured tool-call channel for this (write_file is the
// only recognized ToolUse.Kind, core/decide.go), so the marker is parsed
// directly out of the response text.
var checklistCompletionRe = regexp.MustCompile(`(?m)^CHECKLIST_COMPLETE:\s*(\S+)\s+(.*)$`)

type checklistCompletion struct {
	ItemID   string
	Evidence string
}

func parseChecklistCompletions(content string) []checklistCompletion {
	matches := checklistCompletionRe.FindAllStringSubmatch(content, -1)
	out := make([]checklistCompletion, 0, len(matches))
	for _, m := range matches {
		out = append(out, checklistCompletion{ItemID: m[1], Evidence: strings.TrimSpace(m[2])})
	}
	return out
}
