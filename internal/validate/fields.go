package validate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/intake/internal/model"
)

const (
	MinAge = 0
	MaxAge = 120
)

// ErrRejected matches every field rejection
var ErrRejected = errors.New("input rejected")

// RejectionError carries the corrective prompt for a rejected answer
type RejectionError struct {
	Field  model.Field
	Prompt string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Prompt)
}

func (e *RejectionError) Is(target error) bool {
	return target == ErrRejected
}

func reject(f model.Field, prompt string) *RejectionError {
	return &RejectionError{Field: f, Prompt: prompt}
}

var (
	medicaidYes = map[string]bool{"yes": true, "y": true, "true": true, "1": true}
	medicaidNo  = map[string]bool{"no": true, "n": true, "false": true, "0": true}
)

// Name accepts any non-blank string
func Name(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", reject(model.FieldName, "Please provide a valid full name.")
	}
	return name, nil
}

// Age accepts an integer in [MinAge, MaxAge]
func Age(raw string) (int, error) {
	age, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, reject(model.FieldAge, "Please provide a valid numeric age.")
	}
	if age < MinAge || age > MaxAge {
		return 0, reject(model.FieldAge, fmt.Sprintf("Please provide a valid age between %d and %d.", MinAge, MaxAge))
	}
	return age, nil
}

// Medicaid accepts yes/y/true/1 and no/n/false/0, case-insensitive
func Medicaid(raw string) (bool, error) {
	token := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case medicaidYes[token]:
		return true, nil
	case medicaidNo[token]:
		return false, nil
	default:
		return false, reject(model.FieldMedicaid, "Please answer with 'yes' or 'no' for Medicaid status.")
	}
}

// Disability never rejects; a blank answer becomes model.DisabilityNone
func Disability(raw string) string {
	d := strings.TrimSpace(raw)
	if d == "" {
		return model.DisabilityNone
	}
	return d
}

// Housing accepts any non-blank string
func Housing(raw string) (string, error) {
	h := strings.TrimSpace(raw)
	if h == "" {
		return "", reject(model.FieldHousing, "Please describe your current housing situation.")
	}
	return h, nil
}

// Apply validates raw for the given field and, on acceptance, writes the
// normalized value into rec. A rejected answer leaves rec unchanged.
func Apply(rec *model.IntakeRecord, f model.Field, raw string) error {
	switch f {
	case model.FieldName:
		v, err := Name(raw)
		if err != nil {
			return err
		}
		rec.Name = &v
	case model.FieldAge:
		v, err := Age(raw)
		if err != nil {
			return err
		}
		rec.Age = &v
	case model.FieldMedicaid:
		v, err := Medicaid(raw)
		if err != nil {
			return err
		}
		rec.MedicaidStatus = &v
	case model.FieldDisability:
		v := Disability(raw)
		rec.DisabilityType = &v
	case model.FieldHousing:
		v, err := Housing(raw)
		if err != nil {
			return err
		}
		rec.HousingStatus = &v
	default:
		return fmt.Errorf("unknown field: %q", f)
	}
	return nil
}

// Prompt returns the corrective prompt of a rejection, or "" for other errors
func Prompt(err error) string {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Prompt
	}
	return ""
}
