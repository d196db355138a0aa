// Package intake holds the per-client interview state.
//
// A Session owns exactly one intake record. Sessions are never shared: every
// client interaction (a chat, an MCP connection, an HTTP session, a batch
// entry) creates its own.
package intake

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/validate"
)

// State is the lifecycle position of a session's record
type State string

const (
	StateCollecting    State = "collecting"      // at least one required field missing
	StateReadyToAssess State = "ready_to_assess" // complete, not assessed (or assessment stale)
	StateAssessed      State = "assessed"        // eligibility computed, no dispatch yet
	StateReported      State = "reported"        // dispatch attempted
)

// Session is the interview context for one client
type Session struct {
	mu        sync.Mutex
	id        string
	record    model.IntakeRecord
	stale     bool
	presets   *PresetBook
	logger    *zap.Logger
	createdAt time.Time
	updatedAt time.Time
}

// Option configures a Session
type Option func(*Session)

// WithPresets sets the preset book used by LoadPreset
func WithPresets(book *PresetBook) Option {
	return func(s *Session) { s.presets = book }
}

// WithLogger sets the session logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// NewSession starts an empty session
func NewSession(opts ...Option) *Session {
	now := time.Now().UTC()
	s := &Session{
		id:        uuid.NewString(),
		createdAt: now,
		updatedAt: now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.presets == nil {
		s.presets = NewPresetBook()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("session", s.id))
	return s
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Presets returns the preset book
func (s *Session) Presets() *PresetBook { return s.presets }

// SetField validates raw and stores the normalized answer. On rejection the
// record is unchanged and the error carries the corrective prompt.
func (s *Session) SetField(f model.Field, raw string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validate.Apply(&s.record, f, raw); err != nil {
		s.logger.Debug("field rejected", zap.String("field", string(f)), zap.Error(err))
		return "", err
	}

	if s.record.IsAssessed() {
		s.stale = true
	}
	s.touch()
	s.logger.Debug("field accepted", zap.String("field", string(f)), zap.Bool("complete", s.record.IsComplete()))

	return confirmation(&s.record, f, raw), nil
}

// IsComplete reports whether all required fields are present
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.IsComplete()
}

// NextMissingField returns the first unanswered field in declared order,
// or model.FieldNone and false when the record is complete.
func (s *Session) NextMissingField() (model.Field, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range model.RequiredFields {
		if !s.record.Has(f) {
			return f, true
		}
	}
	return model.FieldNone, false
}

// LoadPreset replaces the whole record with a preset's answers
func (s *Session) LoadPreset(key string) (Preset, error) {
	p, err := s.presets.Get(key)
	if err != nil {
		return Preset{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = p.Record()
	s.stale = false
	s.touch()
	s.logger.Info("preset loaded", zap.String("preset", p.Key))
	return p, nil
}

// Reset clears every answer, the assessment and the report flag
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = model.IntakeRecord{}
	s.stale = false
	s.touch()
	s.logger.Info("session reset")
}

// ApplyAssessment stores a scorer result. The record must still be complete.
func (s *Session) ApplyAssessment(a model.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.record.IsComplete() {
		return fmt.Errorf("apply assessment: record is incomplete")
	}
	s.record.ApplyAssessment(a)
	s.stale = false
	s.touch()
	return nil
}

// ReportGenerated reports whether dispatch has already been attempted
func (s *Session) ReportGenerated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.ReportGenerated
}

// MarkReportGenerated sets the one-shot dispatch gate. It returns false if
// the gate was already set.
func (s *Session) MarkReportGenerated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record.ReportGenerated {
		return false
	}
	s.record.ReportGenerated = true
	s.touch()
	return true
}

// Snapshot returns a copy of the current record
func (s *Session) Snapshot() model.IntakeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Clone()
}

// AssessmentStale reports whether an answer changed after the last assessment
func (s *Session) AssessmentStale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

// State derives the lifecycle state from the record
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case !s.record.IsComplete():
		return StateCollecting
	case !s.record.IsAssessed() || s.stale:
		return StateReadyToAssess
	case s.record.ReportGenerated:
		return StateReported
	default:
		return StateAssessed
	}
}

// UpdatedAt returns the time of the last mutation
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// CreatedAt returns the session start time
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) touch() {
	s.updatedAt = time.Now().UTC()
}

// confirmation builds the acknowledgement for an accepted answer
func confirmation(rec *model.IntakeRecord, f model.Field, raw string) string {
	switch f {
	case model.FieldName:
		return fmt.Sprintf("Name collected: %s", *rec.Name)
	case model.FieldAge:
		return fmt.Sprintf("Age collected: %d", *rec.Age)
	case model.FieldMedicaid:
		if *rec.MedicaidStatus {
			return "Medicaid status: Yes"
		}
		return "Medicaid status: No"
	case model.FieldDisability:
		if strings.TrimSpace(raw) == "" {
			return "Disability type: None"
		}
		return fmt.Sprintf("Disability type collected: %s", *rec.DisabilityType)
	case model.FieldHousing:
		return fmt.Sprintf("Housing status collected: %s", *rec.HousingStatus)
	default:
		return fmt.Sprintf("%s collected", f)
	}
}
