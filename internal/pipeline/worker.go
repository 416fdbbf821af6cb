package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Worker processes a single document job.
type Worker struct {
	runner *Runner
	log    *slog.Logger
}

func NewWorker(runner *Runner, log *slog.Logger) *Worker {
	return &Worker{runner: runner, log: log}
}

// Process runs the pipeline for a job and sets its terminal status.
func (w *Worker) Process(ctx context.Context, job *Job) {
	in := job.Input()
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)
	defer func() {
		job.releaseInput()
		if in.RemovePDF && in.PDFPath != "" {
			if err := os.Remove(in.PDFPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn("remove uploaded pdf", "path", in.PDFPath, "error", err)
			}
		}
	}()

	res, err := w.runner.Run(ctx, in, job.Advance)
	job.Record(res)
	if res != nil {
		for _, warn := range res.Warnings {
			job.AddError(warn)
		}
	}

	switch {
	case errors.Is(err, ErrDuplicate):
		job.SetStatus(StatusDupSkipped, "dedup")
	case err != nil:
		phase := job.Snapshot().Phase
		log.Error("run failed", "phase", phase, "error", err)
		job.AddError(fmt.Sprintf("%s: %s", phase, err))
		job.SetStatus(StatusFailed, phase)
	case len(res.Warnings) > 0:
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
}
