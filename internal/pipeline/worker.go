package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/dgallion1/docstruct/internal/analyzer"
	"github.com/dgallion1/docstruct/internal/parser"
)

// Worker processes a single document job.
type Worker struct {
	analyzer *analyzer.Analyzer
	parseOpt parser.Options
	log      *slog.Logger
	backoff  func(attempt int) time.Duration
}

func NewWorker(a *analyzer.Analyzer, parseOpt parser.Options, log *slog.Logger) *Worker {
	return &Worker{
		analyzer: a,
		parseOpt: parseOpt,
		log:      log,
		backoff:  Backoff,
	}
}

// Process parses and analyzes the job's upload.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename, w.parseOpt)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	src, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.releaseData()
	if t := strings.TrimSpace(job.Title); t != "" {
		src.Hints.Title = t
	}

	// Phase 2: Analyze, streaming so the job reports progress.
	job.SetStatus(StatusAnalyzing, "analyzing")
	opts := job.Options()
	opts.Streaming.Enabled = true
	opts.Streaming.OnProgress = job.SetPercent

	var res analyzer.Result
	err = retry.Do(
		func() error {
			job.IncrAttempts()
			var aerr error
			res, aerr = w.analyzer.Analyze(ctx, src, opts)
			return aerr
		},
		retry.Context(ctx),
		retry.Attempts(MaxRetries),
		retry.RetryIf(IsRetryable),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return w.backoff(int(n))
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("retryable analysis error", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		log.Error("analysis failed", "error", err)
		job.AddError(fmt.Sprintf("analyze: %s", err))
		job.SetStatus(StatusFailed, "analyzing")
		return
	}

	for _, pe := range res.Structure.ProcessingErrors {
		job.AddError(pe)
	}
	job.SetResult(res)
	job.SetStatus(StatusCompleted, "done")
	log.Info("job complete",
		"doc_id", res.Structure.Metadata.DocumentID,
		"confidence", res.Structure.Confidence,
		"meets_threshold", res.MeetsThreshold,
	)
}
