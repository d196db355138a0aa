// Package dispatch runs the report side effects of a completed intake exactly once.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/model"
)

// DefaultNotifyTimeout bounds a notification attempt when none is configured
const DefaultNotifyTimeout = 30 * time.Second

// ReportGenerator produces a report artifact for an assessed record
type ReportGenerator interface {
	Generate(ctx context.Context, rec model.IntakeRecord) (model.ReportHandle, error)
}

// Notifier delivers a generated report. A nil error means the report was sent.
// Notify should return once ctx is done; the dispatcher stops waiting at the
// notification timeout either way.
type Notifier interface {
	Notify(ctx context.Context, handle model.ReportHandle, rec model.IntakeRecord) error
}

// Target is the record whose one-shot dispatch gate the dispatcher controls
type Target interface {
	Snapshot() model.IntakeRecord
	MarkReportGenerated() bool
}

// ErrNotAssessed is returned when dispatch is requested before assessment
var ErrNotAssessed = errors.New("record has not been assessed")

// ReportGenerationError reports a failed report generation. The dispatch gate
// stays closed after it, so the report is not retried for the same record.
type ReportGenerationError struct {
	Err error
}

func (e *ReportGenerationError) Error() string {
	return fmt.Sprintf("report generation failed: %v", e.Err)
}

func (e *ReportGenerationError) Unwrap() error {
	return e.Err
}

// Dispatcher invokes report generation then notification
type Dispatcher struct {
	generator     ReportGenerator
	notifier      Notifier
	notifyTimeout time.Duration
	logger        *zap.Logger
}

// NewDispatcher creates a dispatcher. A nil logger discards log output.
func NewDispatcher(generator ReportGenerator, notifier Notifier, notifyTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	if notifyTimeout <= 0 {
		notifyTimeout = DefaultNotifyTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		generator:     generator,
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
		logger:        logger,
	}
}

// Dispatch generates and sends the report for target, at most once per
// record lifetime. Generation failure is returned as *ReportGenerationError;
// notification failure only degrades the status.
func (d *Dispatcher) Dispatch(ctx context.Context, target Target) (model.DispatchResult, error) {
	rec := target.Snapshot()
	if rec.ReportGenerated {
		return model.DispatchResult{Status: model.DispatchAlreadyAttempted}, nil
	}
	if !rec.IsAssessed() {
		return model.DispatchResult{}, ErrNotAssessed
	}

	// Close the gate before any side effect so a failure cannot trigger a retry
	if !target.MarkReportGenerated() {
		return model.DispatchResult{Status: model.DispatchAlreadyAttempted}, nil
	}
	rec.ReportGenerated = true

	handle, err := d.generator.Generate(ctx, rec)
	if err != nil {
		d.logger.Error("report generation failed", zap.String("client", rec.DisplayName()), zap.Error(err))
		return model.DispatchResult{}, &ReportGenerationError{Err: err}
	}
	d.logger.Info("report generated", zap.String("report_id", handle.ID), zap.String("path", handle.Path))

	result := model.DispatchResult{Handle: &handle}

	notifyCtx, cancel := context.WithTimeout(ctx, d.notifyTimeout)
	defer cancel()

	if err := d.notify(notifyCtx, handle, rec); err != nil {
		d.logger.Warn("notification failed", zap.String("report_id", handle.ID), zap.Error(err))
		result.Status = model.DispatchGeneratedNotSent
		result.Detail = err.Error()
		return result, nil
	}

	d.logger.Info("report sent", zap.String("report_id", handle.ID))
	result.Status = model.DispatchSent
	return result, nil
}

// notify runs the notifier and gives up at the context deadline even if the
// notifier ignores ctx
func (d *Dispatcher) notify(ctx context.Context, handle model.ReportHandle, rec model.IntakeRecord) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.notifier.Notify(ctx, handle, rec)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("notification abandoned: %w", ctx.Err())
	}
}
