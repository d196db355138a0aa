package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ppiankov/intake/internal/intake"
	"github.com/ppiankov/intake/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeGenerator struct {
	calls int
	err   error
	seen  []model.IntakeRecord
}

func (g *fakeGenerator) Generate(_ context.Context, rec model.IntakeRecord) (model.ReportHandle, error) {
	g.calls++
	g.seen = append(g.seen, rec)
	if g.err != nil {
		return model.ReportHandle{}, g.err
	}
	return model.ReportHandle{ID: "r-1", Path: "/tmp/report.html", ContentType: "text/html"}, nil
}

type fakeNotifier struct {
	calls   int
	err     error
	block   bool
	handles []model.ReportHandle
}

func (n *fakeNotifier) Notify(ctx context.Context, handle model.ReportHandle, _ model.IntakeRecord) error {
	n.calls++
	n.handles = append(n.handles, handle)
	if n.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return n.err
}

func assessedSession(t *testing.T) *intake.Session {
	t.Helper()
	s := intake.NewSession()
	_, err := s.LoadPreset("test_client_1")
	require.NoError(t, err)
	require.NoError(t, s.ApplyAssessment(model.Assessment{Score: 8, Eligible: true, Reasons: []string{"Medicaid eligible"}}))
	return s
}

func TestDispatcher_Sent(t *testing.T) {
	gen := &fakeGenerator{}
	notifier := &fakeNotifier{}
	d := NewDispatcher(gen, notifier, time.Second, nil)
	s := assessedSession(t)

	result, err := d.Dispatch(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, model.DispatchSent, result.Status)
	require.NotNil(t, result.Handle)
	assert.Equal(t, "r-1", result.Handle.ID)
	assert.True(t, s.ReportGenerated())

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, "/tmp/report.html", notifier.handles[0].Path)
	assert.True(t, gen.seen[0].ReportGenerated)
}

func TestDispatcher_SecondCallIsAlreadyAttempted(t *testing.T) {
	gen := &fakeGenerator{}
	notifier := &fakeNotifier{}
	d := NewDispatcher(gen, notifier, time.Second, nil)
	s := assessedSession(t)

	_, err := d.Dispatch(context.Background(), s)
	require.NoError(t, err)

	result, err := d.Dispatch(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, model.DispatchAlreadyAttempted, result.Status)
	assert.Nil(t, result.Handle)

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, notifier.calls)
}

func TestDispatcher_NotificationFailureIsNotAnError(t *testing.T) {
	gen := &fakeGenerator{}
	notifier := &fakeNotifier{err: errors.New("smtp: 535 authentication failed")}
	d := NewDispatcher(gen, notifier, time.Second, nil)
	s := assessedSession(t)

	result, err := d.Dispatch(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, model.DispatchGeneratedNotSent, result.Status)
	assert.Contains(t, result.Detail, "535")
	assert.True(t, s.ReportGenerated())

	again, err := d.Dispatch(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, model.DispatchAlreadyAttempted, again.Status)
	assert.Equal(t, 1, notifier.calls)
}

func TestDispatcher_NotificationTimeout(t *testing.T) {
	gen := &fakeGenerator{}
	notifier := &fakeNotifier{block: true}
	d := NewDispatcher(gen, notifier, 20*time.Millisecond, nil)
	s := assessedSession(t)

	start := time.Now()
	result, err := d.Dispatch(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, model.DispatchGeneratedNotSent, result.Status)
	assert.Contains(t, result.Detail, context.DeadlineExceeded.Error())
	assert.Less(t, time.Since(start), 5*time.Second)
}

// stuckNotifier ignores ctx and returns only when released
type stuckNotifier struct {
	release chan struct{}
}

func (n *stuckNotifier) Notify(context.Context, model.ReportHandle, model.IntakeRecord) error {
	<-n.release
	return nil
}

func TestDispatcher_NotificationTimeoutWithStuckNotifier(t *testing.T) {
	notifier := &stuckNotifier{release: make(chan struct{})}
	defer close(notifier.release)

	d := NewDispatcher(&fakeGenerator{}, notifier, 20*time.Millisecond, nil)
	s := assessedSession(t)

	done := make(chan model.DispatchResult, 1)
	go func() {
		result, err := d.Dispatch(context.Background(), s)
		assert.NoError(t, err)
		done <- result
	}()

	select {
	case result := <-done:
		assert.Equal(t, model.DispatchGeneratedNotSent, result.Status)
		assert.Contains(t, result.Detail, context.DeadlineExceeded.Error())
		require.NotNil(t, result.Handle)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not return at the notification timeout")
	}
	assert.True(t, s.Snapshot().ReportGenerated)
}

func TestDispatcher_GenerationFailure(t *testing.T) {
	cause := errors.New("disk full")
	gen := &fakeGenerator{err: cause}
	notifier := &fakeNotifier{}
	d := NewDispatcher(gen, notifier, time.Second, nil)
	s := assessedSession(t)

	_, err := d.Dispatch(context.Background(), s)
	require.Error(t, err)

	var genErr *ReportGenerationError
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "report generation failed: disk full")

	// The gate stays closed so the failure is not retried
	assert.True(t, s.ReportGenerated())
	assert.Equal(t, 0, notifier.calls)

	result, err := d.Dispatch(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, model.DispatchAlreadyAttempted, result.Status)
	assert.Equal(t, 1, gen.calls)
}

func TestDispatcher_NotAssessed(t *testing.T) {
	gen := &fakeGenerator{}
	d := NewDispatcher(gen, &fakeNotifier{}, 0, nil)
	s := intake.NewSession()
	_, err := s.LoadPreset("test_client_2")
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), s)
	require.ErrorIs(t, err, ErrNotAssessed)
	assert.False(t, s.ReportGenerated())
	assert.Equal(t, 0, gen.calls)
}

func TestNewDispatcher_DefaultTimeout(t *testing.T) {
	d := NewDispatcher(&fakeGenerator{}, &fakeNotifier{}, 0, nil)
	assert.Equal(t, DefaultNotifyTimeout, d.notifyTimeout)
}
