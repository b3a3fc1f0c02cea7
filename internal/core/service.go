package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/JonMunkholm/csvclean/internal/core")

// RunSummary is the metadata kept about one cleaning run. It never carries
// row contents.
type RunSummary struct {
	ID          string
	FileName    string
	ContentType string
	SizeBytes   int64
	InputRows   int
	OutputRows  int
	Duplicates  int
	Outcome     Outcome
	ErrorCode   string
	Duration    time.Duration
	CreatedAt   time.Time
}

// RunRecorder stores run summaries. Implementations must be safe for
// concurrent use.
type RunRecorder interface {
	RecordRun(ctx context.Context, run RunSummary) error
}

// RunObserver receives every finished run, e.g. for metrics.
type RunObserver interface {
	ObserveRun(run RunSummary)
}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	MaxConcurrent int
	MaxWaitTime   time.Duration
	Timeout       time.Duration
	Recorder      RunRecorder
	Observer      RunObserver
}

// Service runs cleaning passes for uploads.
type Service struct {
	limiter  *UploadLimiter
	timeout  time.Duration
	recorder RunRecorder
	observer RunObserver
	now      func() time.Time
}

// NewService creates a Service.
func NewService(opts Options) *Service {
	return &Service{
		limiter:  NewUploadLimiter(opts.MaxConcurrent, opts.MaxWaitTime),
		timeout:  opts.Timeout,
		recorder: opts.Recorder,
		observer: opts.Observer,
		now:      time.Now,
	}
}

// CleanUpload validates, parses and cleans one upload.
//
// Rejected uploads return an error wrapping ErrInvalidUpload and never reach
// the cleaner. Read and parse failures wrap ErrReadOrParse.
func (s *Service) CleanUpload(ctx context.Context, up Upload) (*Result, error) {
	start := s.now()
	runID := uuid.NewString()

	ctx, span := tracer.Start(ctx, "core.CleanUpload")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.String("file.name", up.FileName),
		attribute.Int64("file.size", up.Size),
	)

	logger := logging.WithFields(ctx, "run_id", runID, "file", up.FileName)

	table, bytesRead, contentType, err := s.run(ctx, up)

	summary := RunSummary{
		ID:          runID,
		FileName:    up.FileName,
		ContentType: contentType,
		SizeBytes:   up.Size,
		InputRows:   table.InputRows,
		OutputRows:  len(table.Rows),
		Duplicates:  table.Duplicates(),
		Outcome:     OutcomeOf(err),
		ErrorCode:   MapError(err).Code,
		Duration:    s.now().Sub(start),
		CreatedAt:   start,
	}
	if summary.SizeBytes < 0 {
		summary.SizeBytes = bytesRead
	}
	s.finish(ctx, summary)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, summary.ErrorCode)
		logger.Warn("clean run failed",
			"outcome", summary.Outcome,
			"code", summary.ErrorCode,
			"error", err,
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("rows.input", summary.InputRows),
		attribute.Int("rows.output", summary.OutputRows),
	)
	logger.Info("clean run completed",
		"columns", len(table.Headers),
		"rows_in", summary.InputRows,
		"rows_out", summary.OutputRows,
		"duplicates", summary.Duplicates,
		"duration_ms", summary.Duration.Milliseconds(),
	)

	return &Result{
		RunID:    runID,
		FileName: up.FileName,
		Table:    table,
		Message:  MessageSuccess,
		Duration: summary.Duration,
	}, nil
}

// run performs the checks, the parse and the cleaning pass.
func (s *Service) run(ctx context.Context, up Upload) (Table, int64, string, error) {
	contentType := up.ContentType

	if up.Body == nil {
		return Table{}, 0, contentType, Reject(ErrNoFile)
	}
	if up.Size == 0 {
		return Table{}, 0, contentType, Reject(ErrEmptyFile)
	}

	body := bufio.NewReader(up.Body)
	if _, err := body.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, 0, contentType, Reject(ErrEmptyFile)
		}
		return Table{}, 0, contentType, fmt.Errorf("%w: %v", ErrReadOrParse, err)
	}

	if !LooksLikeCSV(up.FileName, contentType) {
		return Table{}, 0, contentType, Reject(ErrNotCSV)
	}

	var src io.Reader = body
	if needsSniff(contentType) {
		isText, rest := sniffText(body)
		if !isText {
			return Table{}, 0, contentType, Reject(ErrNotCSV)
		}
		src = rest
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return Table{}, 0, contentType, err
	}
	defer s.limiter.Release()

	wrapped, counter := WrapForParsing(newContextReader(ctx, src))
	headers, records, err := parseRecords(wrapped)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Table{}, counter.BytesRead, contentType, ctxErr
		}
		return Table{}, counter.BytesRead, contentType, err
	}

	return Clean(headers, records), counter.BytesRead, contentType, nil
}

// finish hands the summary to the observer and the recorder. Recorder
// failures are logged and never change the run's outcome.
func (s *Service) finish(ctx context.Context, run RunSummary) {
	if s.observer != nil {
		s.observer.ObserveRun(run)
	}
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		logging.FromContext(ctx).Error("record clean run", "run_id", run.ID, "error", err)
	}
}

// UploadLimiterStatus returns the current limiter state for monitoring.
func (s *Service) UploadLimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until in-flight runs finish or ctx is done.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func newContextReader(ctx context.Context, r io.Reader) io.Reader {
	return &contextReader{ctx: ctx, r: r}
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
