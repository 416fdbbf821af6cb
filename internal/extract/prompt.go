package extract

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docgraph/internal/qa"
)

const SystemPrompt = `You label the blocks of one textbook page. Return a JSON array of segments. Each segment object must have these fields:

- "type": one of "question", "solution", "derivation", "worked_example", "calculation"
- "block_ids": the ids of the blocks the segment spans, in reading order (list of integers)
- "text": the segment text, copied from those blocks (string)
- "number": the printed question or exercise number, if any (string, default "")
- "steps": for solutions, derivations and calculations, the individual steps (list of strings, default [])

Rules:
- Only label content that is actually a question, a solution, a derivation, a worked example or a calculation
- Never invent text that is not on the page
- A derivation must transform at least one equation into another
- Plain explanatory prose is not a segment
- Return an empty array [] if the page has no such content

Respond with ONLY the JSON array, no other text.`

// BuildPagePrompt lists the page's blocks with their ids and the section
// the page sits in.
func BuildPagePrompt(page qa.PageInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Book: %q\nPage: %d\n", page.BookID, page.PageNum)
	if page.Section != "" {
		fmt.Fprintf(&sb, "Section: %s\n", page.Section)
	}
	sb.WriteString("---\n")
	for i, b := range page.Blocks {
		fmt.Fprintf(&sb, "[%d] %s\n", i, strings.Join(strings.Fields(b.Text), " "))
	}
	return sb.String()
}
