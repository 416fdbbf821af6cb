package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgallion1/docgraph/internal/qa"
)

func testPage() qa.PageInput {
	return qa.PageInput{
		BookID:  "econ",
		PageNum: 4,
		Width:   612,
		Height:  792,
		Section: qa.SectionProblemSet,
		Blocks: []qa.BlockTuple{
			{X0: 50, Y0: 100, X1: 500, Y1: 120, Text: "1. Find the equilibrium price."},
			{X0: 50, Y0: 300, X1: 400, Y1: 320, Text: "Solution: 100 - 2P = 80"},
			{X0: 60, Y0: 325, X1: 450, Y1: 345, Text: "so P = 10"},
		},
	}
}

func replyWith(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" || r.Header.Get("x-api-key") != "k" {
			t.Errorf("unexpected request %s key=%q", r.URL.Path, r.Header.Get("x-api-key"))
		}
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !strings.Contains(req.Messages[0].Content, "[2] so P = 10") {
			t.Errorf("expected numbered blocks in prompt, got %q", req.Messages[0].Content)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": text}},
		})
	}))
}

func TestExtractPage(t *testing.T) {
	srv := replyWith(t, "```json\n"+`[
		{"type":"question","block_ids":[0],"text":"1. Find the equilibrium price.","number":"1"},
		{"type":"solution","block_ids":[1,2],"text":"Solution: 100 - 2P = 80 so P = 10","steps":["100 - 2P = 80","P = 10"]},
		{"type":"opinion","block_ids":[0],"text":"nice page"}
	]`+"\n```")
	defer srv.Close()

	c := NewClaudeExtractor("k", "test-model").WithBaseURL(srv.URL)
	segs, err := c.ExtractPage(context.Background(), testPage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	q, s := segs[0], segs[1]
	if q.SegmentType != qa.TypeQuestion || q.QuestionNumber != "1" || !strings.HasPrefix(q.SegmentID, "question_p4_") {
		t.Errorf("unexpected question %+v", q)
	}
	if s.BBox == nil || s.BBox.X0 != 50 || s.BBox.Y1 != 345 || s.BBox.X1 != 450 {
		t.Errorf("expected union bbox, got %+v", s.BBox)
	}
	if len(s.SolutionSteps) != 2 {
		t.Errorf("expected solution steps, got %v", s.SolutionSteps)
	}
	if c.LLMMode() != "page" {
		t.Errorf("expected llm mode page, got %q", c.LLMMode())
	}
}

func TestExtractPage_Retryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	_, err := NewClaudeExtractor("k", "m").WithBaseURL(srv.URL).ExtractPage(context.Background(), testPage())
	var re *RetryableError
	if !errors.As(err, &re) || re.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected retryable 429, got %v", err)
	}
}

func TestExtractPage_BadJSON(t *testing.T) {
	srv := replyWith(t, "I could not find anything.")
	defer srv.Close()

	_, err := NewClaudeExtractor("k", "m").WithBaseURL(srv.URL).ExtractPage(context.Background(), testPage())
	if err == nil || !strings.Contains(err.Error(), "parse segments json") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestExtractPage_EmptyPage(t *testing.T) {
	segs, err := NewClaudeExtractor("k", "m").ExtractPage(context.Background(), qa.PageInput{PageNum: 1})
	if err != nil || segs != nil {
		t.Errorf("expected no call for an empty page, got %v %v", segs, err)
	}
}

func TestToSegments_StableIDs(t *testing.T) {
	answers := func() []Answer {
		return []Answer{{Type: "derivation", BlockIDs: []int{1}, Text: "Rearranging gives P = 10", Steps: []string{"P = 10"}}}
	}
	a := ToSegments(testPage(), answers())
	b := ToSegments(testPage(), answers())
	if len(a) != 1 || a[0].SegmentID != b[0].SegmentID {
		t.Fatalf("expected stable ids, got %v / %v", a, b)
	}
	if len(a[0].Steps) != 1 || a[0].ChapterNumber != "unknown" {
		t.Errorf("unexpected derivation %+v", a[0])
	}
}
