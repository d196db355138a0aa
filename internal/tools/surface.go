// Package tools exposes an intake session as a closed set of operations.
//
// Every operation takes at most one string argument and returns one
// human-readable reply. The only error that escapes an operation is a
// *dispatch.ReportGenerationError; validation problems, incomplete records
// and notification failures are all reported in the reply text.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/dispatch"
	"github.com/ppiankov/intake/internal/intake"
	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/score"
	"github.com/ppiankov/intake/internal/validate"
)

// Replies shared with drivers and tests
const (
	MsgIncomplete       = "Cannot assess eligibility yet. Need to collect all required information first."
	MsgAllAnswered      = "All questions have been answered. Ready to assess eligibility."
	MsgReportSent       = "Report generated and emailed to staff."
	MsgReportNotSent    = "Report generated, but failed to send email."
	MsgReportAttempted  = "Report already generated and email attempted."
	MsgReportFailed     = "Report generation failed."
	MsgResetComplete    = "Intake cleared. Ready to start a new client."
	notCollected        = "(not collected)"
	assessmentHeadline  = "Eligibility Assessment Complete:"
	nextQuestionPrefix  = "Next question: "
	presetLoadedPattern = "Loaded pre-built data for %s: %s"
)

// ErrUnknownOperation is returned for operation names outside the catalog
var ErrUnknownOperation = errors.New("unknown operation")

// Dispatcher runs the one-shot report side effects
type Dispatcher interface {
	Dispatch(ctx context.Context, target dispatch.Target) (model.DispatchResult, error)
}

// Surface binds one session to the operation set. Operations on a surface
// are serialized; an assess holds the lock through dispatch.
type Surface struct {
	mu         sync.Mutex
	session    *intake.Session
	scorer     *score.Scorer
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewSurface creates a surface over session. A nil logger discards output.
func NewSurface(session *intake.Session, scorer *score.Scorer, dispatcher Dispatcher, logger *zap.Logger) *Surface {
	if scorer == nil {
		scorer = score.NewScorer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Surface{
		session:    session,
		scorer:     scorer,
		dispatcher: dispatcher,
		logger:     logger.With(zap.String("session", session.ID())),
	}
}

// Session returns the underlying session
func (s *Surface) Session() *intake.Session { return s.session }

// InvokeByName resolves name against the catalog and invokes it
func (s *Surface) InvokeByName(ctx context.Context, name, arg string) (string, error) {
	spec, ok := Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	return s.Invoke(ctx, spec.Op, arg)
}

// Invoke runs one operation. Operations without an argument ignore arg.
func (s *Surface) Invoke(ctx context.Context, op Operation, arg string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := FieldOf(op); ok {
		return s.setField(f, arg), nil
	}

	switch op {
	case OpAssess:
		return s.assess(ctx)
	case OpNextQuestion:
		return s.nextQuestion(), nil
	case OpLoadPreset:
		return s.loadPreset(arg), nil
	case OpReset:
		s.session.Reset()
		return MsgResetComplete, nil
	case OpSummary:
		return s.summary(), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
}

func (s *Surface) setField(f model.Field, arg string) string {
	msg, err := s.session.SetField(f, arg)
	if err != nil {
		if prompt := validate.Prompt(err); prompt != "" {
			return prompt
		}
		return err.Error()
	}
	return msg
}

func (s *Surface) assess(ctx context.Context) (string, error) {
	rec := s.session.Snapshot()
	a, err := s.scorer.Calculate(rec)
	if errors.Is(err, score.ErrIncompleteRecord) {
		return MsgIncomplete, nil
	}
	if err != nil {
		return "", fmt.Errorf("assess: %w", err)
	}
	if err := s.session.ApplyAssessment(a); err != nil {
		return MsgIncomplete, nil
	}

	s.logger.Info("assessment computed",
		zap.Int("score", a.Score),
		zap.Bool("eligible", a.Eligible),
		zap.Strings("reasons", a.Reasons))

	head := formatAssessment(a)

	result, err := s.dispatcher.Dispatch(ctx, s.session)
	if err != nil {
		var genErr *dispatch.ReportGenerationError
		if errors.As(err, &genErr) {
			return head + MsgReportFailed, err
		}
		return "", fmt.Errorf("dispatch report: %w", err)
	}

	s.logger.Info("dispatch finished", zap.String("status", string(result.Status)))
	return head + dispatchLine(result.Status), nil
}

func formatAssessment(a model.Assessment) string {
	return fmt.Sprintf("%s\nEligible: %t\nScore: %d\nReasons: %s\n",
		assessmentHeadline, a.Eligible, a.Score, strings.Join(a.Reasons, ", "))
}

func dispatchLine(status model.DispatchStatus) string {
	switch status {
	case model.DispatchSent:
		return MsgReportSent
	case model.DispatchGeneratedNotSent:
		return MsgReportNotSent
	default:
		return MsgReportAttempted
	}
}

func (s *Surface) nextQuestion() string {
	f, missing := s.session.NextMissingField()
	if !missing {
		return MsgAllAnswered
	}
	q, _ := intake.QuestionFor(f)
	return nextQuestionPrefix + q
}

func (s *Surface) loadPreset(key string) string {
	key = strings.TrimSpace(key)
	p, err := s.session.LoadPreset(key)
	if err != nil {
		return fmt.Sprintf("Pre-built client '%s' not found. Available: %s",
			key, strings.Join(s.session.Presets().Keys(), ", "))
	}
	return fmt.Sprintf(presetLoadedPattern, p.Key, p.Name)
}

func (s *Surface) summary() string {
	rec := s.session.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", orNotCollected(rec.Name))
	if rec.Age != nil {
		fmt.Fprintf(&b, "Age: %d\n", *rec.Age)
	} else {
		fmt.Fprintf(&b, "Age: %s\n", notCollected)
	}
	switch {
	case rec.MedicaidStatus == nil:
		fmt.Fprintf(&b, "Medicaid status: %s\n", notCollected)
	case *rec.MedicaidStatus:
		b.WriteString("Medicaid status: Yes\n")
	default:
		b.WriteString("Medicaid status: No\n")
	}
	fmt.Fprintf(&b, "Disability type: %s\n", orNotCollected(rec.DisabilityType))
	fmt.Fprintf(&b, "Housing status: %s\n", orNotCollected(rec.HousingStatus))

	state := s.session.State()
	fmt.Fprintf(&b, "State: %s", state)

	if rec.IsAssessed() {
		fmt.Fprintf(&b, "\nEligible: %t\nScore: %d\nReasons: %s",
			*rec.Eligible, *rec.EligibilityScore, strings.Join(rec.EligibilityReasons, ", "))
		if s.session.AssessmentStale() {
			b.WriteString("\nAssessment is out of date; run assess again.")
		}
	}
	if rec.ReportGenerated {
		b.WriteString("\nReport: generated")
	}
	return b.String()
}

func orNotCollected(s *string) string {
	if s == nil {
		return notCollected
	}
	return *s
}
