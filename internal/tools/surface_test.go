package tools

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/intake/internal/dispatch"
	"github.com/ppiankov/intake/internal/intake"
	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/score"
)

type countingGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *countingGenerator) Generate(context.Context, model.IntakeRecord) (model.ReportHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return model.ReportHandle{}, g.err
	}
	return model.ReportHandle{ID: "r", Path: "report.html"}, nil
}

type countingNotifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (n *countingNotifier) Notify(context.Context, model.ReportHandle, model.IntakeRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return n.err
}

func newSurface(t *testing.T, gen *countingGenerator, notifier *countingNotifier) *Surface {
	t.Helper()
	d := dispatch.NewDispatcher(gen, notifier, time.Second, nil)
	return NewSurface(intake.NewSession(), score.NewScorer(), d, nil)
}

func invoke(t *testing.T, s *Surface, op Operation, arg string) string {
	t.Helper()
	msg, err := s.Invoke(context.Background(), op, arg)
	require.NoError(t, err)
	return msg
}

func TestSurface_SetOperations(t *testing.T) {
	s := newSurface(t, &countingGenerator{}, &countingNotifier{})

	tests := []struct {
		op   Operation
		arg  string
		want string
	}{
		{OpSetName, "John Smith", "Name collected: John Smith"},
		{OpSetName, "  ", "Please provide a valid full name."},
		{OpSetAge, "45", "Age collected: 45"},
		{OpSetAge, "forty", "Please provide a valid numeric age."},
		{OpSetAge, "121", "Please provide a valid age between 0 and 120."},
		{OpSetMedicaid, "YES", "Medicaid status: Yes"},
		{OpSetMedicaid, "maybe", "Please answer with 'yes' or 'no' for Medicaid status."},
		{OpSetDisability, "", "Disability type: None"},
		{OpSetDisability, "Visual impairment", "Disability type collected: Visual impairment"},
		{OpSetHousing, "", "Please describe your current housing situation."},
		{OpSetHousing, "Homeless", "Housing status collected: Homeless"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, invoke(t, s, tt.op, tt.arg), "%s %q", tt.op, tt.arg)
	}

	// Rejected answers left the accepted ones in place
	rec := s.Session().Snapshot()
	assert.Equal(t, 45, *rec.Age)
	assert.True(t, *rec.MedicaidStatus)
}

func TestSurface_Assess_Incomplete(t *testing.T) {
	gen := &countingGenerator{}
	s := newSurface(t, gen, &countingNotifier{})

	invoke(t, s, OpSetName, "Ana")
	assert.Equal(t, MsgIncomplete, invoke(t, s, OpAssess, ""))
	assert.Nil(t, s.Session().Snapshot().Eligible)
	assert.Equal(t, 0, gen.calls)
}

func TestSurface_Assess_Preset1(t *testing.T) {
	gen := &countingGenerator{}
	notifier := &countingNotifier{}
	s := newSurface(t, gen, notifier)

	assert.Equal(t, "Loaded pre-built data for test_client_1: John Smith", invoke(t, s, OpLoadPreset, "test_client_1"))

	want := "Eligibility Assessment Complete:\n" +
		"Eligible: true\n" +
		"Score: 8\n" +
		"Reasons: Adult age requirement met, Medicaid eligible, Has disability: physical disability, Housing instability identified\n" +
		"Report generated and emailed to staff."
	assert.Equal(t, want, invoke(t, s, OpAssess, ""))

	again := invoke(t, s, OpAssess, "")
	assert.True(t, strings.HasSuffix(again, MsgReportAttempted), again)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, notifier.calls)
}

func TestSurface_Assess_Preset2(t *testing.T) {
	s := newSurface(t, &countingGenerator{}, &countingNotifier{})

	invoke(t, s, OpLoadPreset, "test_client_2")
	want := "Eligibility Assessment Complete:\n" +
		"Eligible: false\n" +
		"Score: 2\n" +
		"Reasons: Adult age requirement met, Currently stably housed\n" +
		"Report generated and emailed to staff."
	assert.Equal(t, want, invoke(t, s, OpAssess, ""))
}

func TestSurface_Assess_NotificationFailure(t *testing.T) {
	notifier := &countingNotifier{err: errors.New("connection refused")}
	s := newSurface(t, &countingGenerator{}, notifier)

	invoke(t, s, OpLoadPreset, "test_client_1")
	msg := invoke(t, s, OpAssess, "")
	assert.True(t, strings.HasSuffix(msg, MsgReportNotSent), msg)
	assert.True(t, s.Session().ReportGenerated())

	msg = invoke(t, s, OpAssess, "")
	assert.True(t, strings.HasSuffix(msg, MsgReportAttempted), msg)
	assert.Equal(t, 1, notifier.calls)
}

func TestSurface_Assess_GenerationFailure(t *testing.T) {
	gen := &countingGenerator{err: errors.New("permission denied")}
	s := newSurface(t, gen, &countingNotifier{})

	invoke(t, s, OpLoadPreset, "test_client_1")
	msg, err := s.Invoke(context.Background(), OpAssess, "")
	require.Error(t, err)

	var genErr *dispatch.ReportGenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, msg, "Score: 8")
	assert.True(t, s.Session().ReportGenerated())

	// Not retried
	msg = invoke(t, s, OpAssess, "")
	assert.True(t, strings.HasSuffix(msg, MsgReportAttempted), msg)
	assert.Equal(t, 1, gen.calls)
}

func TestSurface_EditAfterAssessRescores(t *testing.T) {
	gen := &countingGenerator{}
	s := newSurface(t, gen, &countingNotifier{})

	invoke(t, s, OpLoadPreset, "test_client_2")
	invoke(t, s, OpAssess, "")
	assert.Equal(t, intake.StateReported, s.Session().State())

	invoke(t, s, OpSetHousing, "homeless")
	assert.Equal(t, intake.StateReadyToAssess, s.Session().State())

	msg := invoke(t, s, OpAssess, "")
	assert.Contains(t, msg, "Eligible: true\nScore: 4\n")
	assert.True(t, strings.HasSuffix(msg, MsgReportAttempted), msg)
	assert.Equal(t, 1, gen.calls)
}

func TestSurface_ResetReopensDispatch(t *testing.T) {
	gen := &countingGenerator{}
	s := newSurface(t, gen, &countingNotifier{})

	invoke(t, s, OpLoadPreset, "test_client_1")
	invoke(t, s, OpAssess, "")

	assert.Equal(t, MsgResetComplete, invoke(t, s, OpReset, ""))
	assert.Equal(t, intake.StateCollecting, s.Session().State())

	invoke(t, s, OpLoadPreset, "test_client_1")
	msg := invoke(t, s, OpAssess, "")
	assert.True(t, strings.HasSuffix(msg, MsgReportSent), msg)
	assert.Equal(t, 2, gen.calls)
}

func TestSurface_NextQuestion(t *testing.T) {
	s := newSurface(t, &countingGenerator{}, &countingNotifier{})

	assert.Equal(t, "Next question: Let's get started! What is your full name?", invoke(t, s, OpNextQuestion, ""))

	invoke(t, s, OpSetName, "Ana")
	invoke(t, s, OpSetMedicaid, "no")
	assert.Equal(t, "Next question: How old are you?", invoke(t, s, OpNextQuestion, ""))

	invoke(t, s, OpLoadPreset, "test_client_2")
	assert.Equal(t, MsgAllAnswered, invoke(t, s, OpNextQuestion, ""))
}

func TestSurface_LoadPreset_Unknown(t *testing.T) {
	s := newSurface(t, &countingGenerator{}, &countingNotifier{})
	invoke(t, s, OpSetName, "Ana")

	msg := invoke(t, s, OpLoadPreset, "test_client_3")
	assert.Equal(t, "Pre-built client 'test_client_3' not found. Available: test_client_1, test_client_2", msg)
	assert.Equal(t, "Ana", *s.Session().Snapshot().Name)
}

func TestSurface_Summary(t *testing.T) {
	s := newSurface(t, &countingGenerator{}, &countingNotifier{})

	invoke(t, s, OpSetName, "Ana")
	msg := invoke(t, s, OpSummary, "")
	assert.Contains(t, msg, "Name: Ana")
	assert.Contains(t, msg, "Age: (not collected)")
	assert.Contains(t, msg, "State: collecting")
	assert.NotContains(t, msg, "Eligible:")

	invoke(t, s, OpLoadPreset, "test_client_1")
	invoke(t, s, OpAssess, "")
	msg = invoke(t, s, OpSummary, "")
	assert.Contains(t, msg, "Medicaid status: Yes")
	assert.Contains(t, msg, "State: reported")
	assert.Contains(t, msg, "Score: 8")
	assert.Contains(t, msg, "Report: generated")
}

func TestSurface_UnknownOperation(t *testing.T) {
	s := newSurface(t, &countingGenerator{}, &countingNotifier{})

	_, err := s.Invoke(context.Background(), Operation("delete-client"), "")
	require.ErrorIs(t, err, ErrUnknownOperation)

	_, err = s.InvokeByName(context.Background(), "fly", "")
	require.ErrorIs(t, err, ErrUnknownOperation)

	msg, err := s.InvokeByName(context.Background(), "set_age", "30")
	require.NoError(t, err)
	assert.Equal(t, "Age collected: 30", msg)
}

func TestSurface_ConcurrentAssessDispatchesOnce(t *testing.T) {
	gen := &countingGenerator{}
	s := newSurface(t, gen, &countingNotifier{})
	invoke(t, s, OpLoadPreset, "test_client_1")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Invoke(context.Background(), OpAssess, "")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, gen.calls)
}

func TestCatalog(t *testing.T) {
	specs := Catalog()
	require.Len(t, specs, 10)

	seen := make(map[Operation]bool)
	for _, spec := range specs {
		assert.False(t, seen[spec.Op], "duplicate %s", spec.Op)
		seen[spec.Op] = true
		assert.NotEmpty(t, spec.Description)

		_, isSetter := FieldOf(spec.Op)
		if isSetter || spec.Op == OpLoadPreset {
			assert.True(t, spec.HasArgument(), spec.Op)
		}
	}

	spec, ok := Lookup("Next_Question")
	require.True(t, ok)
	assert.Equal(t, OpNextQuestion, spec.Op)
	assert.Equal(t, "next_question", spec.ToolName())
}
