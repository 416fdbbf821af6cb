// Package extract finds QA segments on a page with the Anthropic Messages
// API. It is an alternative to the heuristic extractor in package qa.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/qa"
)

// DefaultBaseURL is the Anthropic API root.
const DefaultBaseURL = "https://api.anthropic.com"

// ClaudeExtractor calls the Anthropic Messages API once per page.
type ClaudeExtractor struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewClaudeExtractor(apiKey, model string) *ClaudeExtractor {
	return &ClaudeExtractor{
		apiKey:  apiKey,
		model:   model,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// WithBaseURL points the extractor at another API root.
func (c *ClaudeExtractor) WithBaseURL(u string) *ClaudeExtractor {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// Model returns the configured model name.
func (c *ClaudeExtractor) Model() string { return c.model }

// LLMMode is echoed into the sidecar config.
func (c *ClaudeExtractor) LLMMode() string { return "page" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ExtractPage asks the model to type the page's blocks and converts the
// accepted answers into segments anchored on those blocks.
func (c *ClaudeExtractor) ExtractPage(ctx context.Context, page qa.PageInput) ([]qa.Segment, error) {
	if len(page.Blocks) == 0 {
		return nil, nil
	}
	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: 4096,
		System:    SystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildPagePrompt(page)},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("claude api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("claude api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("claude error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return nil, fmt.Errorf("empty response from claude")
	}

	text := stripCodeBlock(apiResp.Content[0].Text)
	var answers []Answer
	if err := json.Unmarshal([]byte(text), &answers); err != nil {
		return nil, fmt.Errorf("parse segments json: %w (raw: %s)", err, truncate(text, 200))
	}
	return ToSegments(page, answers), nil
}

// ToSegments keeps the valid answers and anchors each on the union box of
// its blocks. Ids are stable for the same page text.
func ToSegments(page qa.PageInput, answers []Answer) []qa.Segment {
	var out []qa.Segment
	for i := range answers {
		a := &answers[i]
		if !ValidateAnswer(a, len(page.Blocks)) {
			continue
		}
		first := page.Blocks[a.BlockIDs[0]]
		box := qa.PageBox{Page: page.PageNum, X0: first.X0, Y0: first.Y0, X1: first.X1, Y1: first.Y1}
		for _, id := range a.BlockIDs[1:] {
			b := page.Blocks[id]
			box.X0, box.Y0 = min(box.X0, b.X0), min(box.Y0, b.Y0)
			box.X1, box.Y1 = max(box.X1, b.X1), max(box.Y1, b.Y1)
		}

		key := fmt.Sprintf("%s|%d|%s", page.BookID, page.PageNum, a.Text)
		seg := qa.Segment{
			SegmentID:     fmt.Sprintf("%s_p%d_%s", a.Type, page.PageNum, doctree.ContentHashHex([]byte(key))[:10]),
			SegmentType:   a.Type,
			BookID:        page.BookID,
			ChapterNumber: "unknown",
			PageStart:     page.PageNum,
			PageEnd:       page.PageNum,
			BBox:          &box,
			TextContent:   a.Text,
		}
		switch a.Type {
		case qa.TypeQuestion:
			seg.QuestionNumber = a.Number
		case qa.TypeSolution:
			seg.SolutionSteps = a.Steps
		default:
			seg.Steps = a.Steps
		}
		out = append(out, seg)
	}
	return out
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// Close releases resources.
func (c *ClaudeExtractor) Close() {
	c.httpClient.CloseIdleConnections()
}
