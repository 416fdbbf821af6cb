package extract

import (
	"regexp"
	"strings"

	"github.com/dgallion1/docgraph/internal/qa"
)

// Answer is one segment as returned by the model.
type Answer struct {
	Type     string   `json:"type"`
	BlockIDs []int    `json:"block_ids"`
	Text     string   `json:"text"`
	Number   string   `json:"number"`
	Steps    []string `json:"steps"`
}

var validTypes = map[string]bool{
	qa.TypeQuestion:      true,
	qa.TypeSolution:      true,
	qa.TypeDerivation:    true,
	qa.TypeWorkedExample: true,
	qa.TypeCalculation:   true,
}

const maxSteps = 20

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|override|` +
		`new\s+instructions)`,
)

// ValidateAnswer checks a model answer against a page of nBlocks blocks.
// Valid answers are normalized in place.
func ValidateAnswer(a *Answer, nBlocks int) bool {
	if a == nil {
		return false
	}
	a.Type = strings.ToLower(strings.TrimSpace(a.Type))
	if !validTypes[a.Type] {
		return false
	}
	a.Text = strings.TrimSpace(a.Text)
	if len(a.Text) < 3 || len(a.Text) > 8000 {
		return false
	}
	if injectionPattern.MatchString(a.Text) {
		return false
	}

	// Drop out-of-range and repeated block ids.
	seen := make(map[int]bool, len(a.BlockIDs))
	ids := a.BlockIDs[:0]
	for _, id := range a.BlockIDs {
		if id < 0 || id >= nBlocks || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	a.BlockIDs = ids
	if len(a.BlockIDs) == 0 {
		return false
	}

	a.Number = strings.TrimSpace(a.Number)
	steps := a.Steps[:0]
	for _, s := range a.Steps {
		if s = strings.TrimSpace(s); s != "" {
			steps = append(steps, s)
		}
	}
	if len(steps) > maxSteps {
		steps = steps[:maxSteps]
	}
	a.Steps = steps
	return true
}
