package score

import (
	"errors"
	"strings"

	"github.com/ppiankov/intake/internal/model"
)

// EligibilityThreshold is the minimum score for a client to be eligible
const EligibilityThreshold = 3

// Reasons, in evaluation order
const (
	ReasonAdult              = "Adult age requirement met"
	ReasonMedicaid           = "Medicaid eligible"
	ReasonDisabilityPrefix   = "Has disability: "
	ReasonHousingInstability = "Housing instability identified"
	ReasonStablyHoused       = "Currently stably housed"
)

// ErrIncompleteRecord is returned when a required field has not been answered
var ErrIncompleteRecord = errors.New("incomplete intake record")

// Scorer calculates the eligibility assessment
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate scores a complete record. It never mutates rec; the caller
// writes the result back.
func (s *Scorer) Calculate(rec model.IntakeRecord) (model.Assessment, error) {
	if !rec.IsComplete() {
		return model.Assessment{}, ErrIncompleteRecord
	}

	total := 0
	reasons := []string{}
	add := func(points int, reason string) {
		if points > 0 {
			total += points
			reasons = append(reasons, reason)
		}
	}

	// 1. Age (adults)
	add(s.agePoints(*rec.Age))

	// 2. Medicaid
	add(s.medicaidPoints(*rec.MedicaidStatus))

	// 3. Disability
	add(s.disabilityPoints(*rec.DisabilityType))

	// 4. Housing (homeless / at risk take priority over stably housed)
	add(s.housingPoints(*rec.HousingStatus))

	return model.Assessment{
		Score:    total,
		Eligible: total >= EligibilityThreshold,
		Reasons:  reasons,
	}, nil
}

func (s *Scorer) agePoints(age int) (int, string) {
	if age >= 18 {
		return 1, ReasonAdult
	}
	return 0, ""
}

func (s *Scorer) medicaidPoints(medicaid bool) (int, string) {
	if medicaid {
		return 2, ReasonMedicaid
	}
	return 0, ""
}

func (s *Scorer) disabilityPoints(disability string) (int, string) {
	d := normalize(disability)
	if d != "" && d != "none" {
		return 2, ReasonDisabilityPrefix + d
	}
	return 0, ""
}

func (s *Scorer) housingPoints(housing string) (int, string) {
	h := normalize(housing)
	switch {
	case strings.Contains(h, "homeless") || strings.Contains(h, "at risk"):
		return 3, ReasonHousingInstability
	case strings.Contains(h, "stably"):
		return 1, ReasonStablyHoused
	default:
		return 0, ""
	}
}

// normalize is applied to every free-text answer before keyword matching
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
