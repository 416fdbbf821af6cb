package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgallion1/docgraph/internal/qa"
)

// RetryingExtractor retries pages whose extraction failed with a
// retryable error.
type RetryingExtractor struct {
	Inner qa.SegmentExtractor
	Log   *slog.Logger

	backoff func(attempt int) time.Duration
}

// LLMMode forwards the wrapped extractor's mode, if it reports one.
func (r *RetryingExtractor) LLMMode() string {
	if m, ok := r.Inner.(interface{ LLMMode() string }); ok {
		return m.LLMMode()
	}
	return "off"
}

func (r *RetryingExtractor) ExtractPage(ctx context.Context, page qa.PageInput) ([]qa.Segment, error) {
	backoff := r.backoff
	if backoff == nil {
		backoff = Backoff
	}
	var segs []qa.Segment
	var lastErr error
	for attempt := range MaxRetries {
		segs, lastErr = r.Inner.ExtractPage(ctx, page)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		if r.Log != nil {
			r.Log.Warn("retryable extraction error", "book_id", page.BookID, "page", page.PageNum, "attempt", attempt, "error", lastErr)
		}
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return segs, lastErr
}
