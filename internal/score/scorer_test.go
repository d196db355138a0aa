package score

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ppiankov/intake/internal/model"
)

func record(name string, age int, medicaid bool, disability, housing string) model.IntakeRecord {
	return model.IntakeRecord{
		Name:           model.StringPtr(name),
		Age:            model.IntPtr(age),
		MedicaidStatus: model.BoolPtr(medicaid),
		DisabilityType: model.StringPtr(disability),
		HousingStatus:  model.StringPtr(housing),
	}
}

func TestScorer_Calculate_EligibleFixture(t *testing.T) {
	scorer := NewScorer()

	result, err := scorer.Calculate(record("John Smith", 45, true, "Physical disability", "At risk of homelessness"))
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if result.Score != 8 {
		t.Errorf("Expected score 8, got %d", result.Score)
	}
	if !result.Eligible {
		t.Error("Expected client to be eligible")
	}

	want := []string{
		"Adult age requirement met",
		"Medicaid eligible",
		"Has disability: physical disability",
		"Housing instability identified",
	}
	if !reflect.DeepEqual(result.Reasons, want) {
		t.Errorf("Unexpected reasons:\n got: %v\nwant: %v", result.Reasons, want)
	}
}

func TestScorer_Calculate_IneligibleFixture(t *testing.T) {
	scorer := NewScorer()

	result, err := scorer.Calculate(record("Mary Johnson", 28, false, "None", "Stably housed"))
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if result.Score != 2 {
		t.Errorf("Expected score 2, got %d", result.Score)
	}
	if result.Eligible {
		t.Error("Expected client to be ineligible")
	}

	want := []string{"Adult age requirement met", "Currently stably housed"}
	if !reflect.DeepEqual(result.Reasons, want) {
		t.Errorf("Unexpected reasons:\n got: %v\nwant: %v", result.Reasons, want)
	}
}

func TestScorer_Calculate_Incomplete(t *testing.T) {
	scorer := NewScorer()

	rec := record("Sarah Wilson", 42, true, "Mobility", "Homeless")
	rec.HousingStatus = nil

	_, err := scorer.Calculate(rec)
	if !errors.Is(err, ErrIncompleteRecord) {
		t.Fatalf("Expected ErrIncompleteRecord, got %v", err)
	}
	if rec.Eligible != nil || rec.EligibilityScore != nil {
		t.Error("Expected record not to be mutated")
	}
}

func TestScorer_Calculate_Idempotent(t *testing.T) {
	scorer := NewScorer()
	rec := record("Sarah Wilson", 42, true, "Mobility", "at risk")

	first, err := scorer.Calculate(rec)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := scorer.Calculate(rec)
		if err != nil {
			t.Fatalf("Calculate failed: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Expected identical assessment, got %+v then %+v", first, again)
		}
	}
}

func TestScorer_Calculate_Rules(t *testing.T) {
	tests := []struct {
		name       string
		age        int
		medicaid   bool
		disability string
		housing    string
		wantScore  int
		wantElig   bool
		wantReason []string
	}{
		{
			name:       "minor without supports",
			age:        17,
			disability: "None",
			housing:    "with parents",
			wantScore:  0,
			wantReason: []string{},
		},
		{
			name:       "exactly eighteen",
			age:        18,
			disability: "None",
			housing:    "renting",
			wantScore:  1,
			wantReason: []string{ReasonAdult},
		},
		{
			name:       "disability none is case-insensitive",
			age:        30,
			disability: "NONE",
			housing:    "renting",
			wantScore:  1,
			wantReason: []string{ReasonAdult},
		},
		{
			name:       "homeless only reaches threshold",
			age:        10,
			disability: "None",
			housing:    "Currently HOMELESS",
			wantScore:  3,
			wantElig:   true,
			wantReason: []string{ReasonHousingInstability},
		},
		{
			name:       "instability wins over stably",
			age:        40,
			disability: "None",
			housing:    "stably housed but at risk of eviction",
			wantScore:  4,
			wantElig:   true,
			wantReason: []string{ReasonAdult, ReasonHousingInstability},
		},
		{
			name:       "medicaid and adult",
			age:        65,
			medicaid:   true,
			disability: "None",
			housing:    "own home",
			wantScore:  3,
			wantElig:   true,
			wantReason: []string{ReasonAdult, ReasonMedicaid},
		},
		{
			name:       "disability reason is lowercased",
			age:        50,
			disability: "Hearing Impairment",
			housing:    "Stably Housed",
			wantScore:  4,
			wantElig:   true,
			wantReason: []string{ReasonAdult, "Has disability: hearing impairment", ReasonStablyHoused},
		},
		{
			name:       "maximum score",
			age:        120,
			medicaid:   true,
			disability: "Blind",
			housing:    "homeless",
			wantScore:  8,
			wantElig:   true,
			wantReason: []string{ReasonAdult, ReasonMedicaid, "Has disability: blind", ReasonHousingInstability},
		},
	}

	scorer := NewScorer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := scorer.Calculate(record("Client", tt.age, tt.medicaid, tt.disability, tt.housing))
			if err != nil {
				t.Fatalf("Calculate failed: %v", err)
			}
			if result.Score != tt.wantScore {
				t.Errorf("Expected score %d, got %d", tt.wantScore, result.Score)
			}
			if result.Eligible != tt.wantElig {
				t.Errorf("Expected eligible=%v, got %v", tt.wantElig, result.Eligible)
			}
			if !reflect.DeepEqual(result.Reasons, tt.wantReason) {
				t.Errorf("Unexpected reasons:\n got: %v\nwant: %v", result.Reasons, tt.wantReason)
			}
		})
	}
}

func TestScorer_Calculate_ScoreRange(t *testing.T) {
	scorer := NewScorer()
	for _, age := range []int{0, 17, 18, 120} {
		for _, medicaid := range []bool{true, false} {
			for _, disability := range []string{"None", "Physical"} {
				for _, housing := range []string{"homeless", "stably housed", "renting"} {
					result, err := scorer.Calculate(record("Client", age, medicaid, disability, housing))
					if err != nil {
						t.Fatalf("Calculate failed: %v", err)
					}
					if result.Score < 0 || result.Score > 10 {
						t.Errorf("Expected score in [0,10], got %d", result.Score)
					}
					if result.Eligible != (result.Score >= EligibilityThreshold) {
						t.Errorf("Eligibility %v inconsistent with score %d", result.Eligible, result.Score)
					}
				}
			}
		}
	}
}
