package model

// Field identifies one of the required intake answers
type Field string

const (
	FieldName       Field = "name"
	FieldAge        Field = "age"
	FieldMedicaid   Field = "medicaid_status"
	FieldDisability Field = "disability_type"
	FieldHousing    Field = "housing_status"

	// FieldNone is returned when no required field is missing
	FieldNone Field = "none"
)

// RequiredFields lists the intake fields in the order they are asked
var RequiredFields = []Field{
	FieldName,
	FieldAge,
	FieldMedicaid,
	FieldDisability,
	FieldHousing,
}

// DisabilityNone is the stored disability type when the client reports none
const DisabilityNone = "None"

// IntakeRecord holds the answers and derived assessment for one client.
// Required answers are pointers so an unanswered field is distinguishable
// from a zero value (age 0, no Medicaid).
type IntakeRecord struct {
	Name           *string `json:"name,omitempty" yaml:"name,omitempty"`
	Age            *int    `json:"age,omitempty" yaml:"age,omitempty"`
	MedicaidStatus *bool   `json:"medicaid_status,omitempty" yaml:"medicaid_status,omitempty"`
	DisabilityType *string `json:"disability_type,omitempty" yaml:"disability_type,omitempty"`
	HousingStatus  *string `json:"housing_status,omitempty" yaml:"housing_status,omitempty"`

	Eligible           *bool    `json:"eligible,omitempty" yaml:"eligible,omitempty"`
	EligibilityScore   *int     `json:"eligibility_score,omitempty" yaml:"eligibility_score,omitempty"`
	EligibilityReasons []string `json:"eligibility_reasons,omitempty" yaml:"eligibility_reasons,omitempty"`

	// ReportGenerated flips to true once per record lifetime, on the first dispatch attempt
	ReportGenerated bool `json:"report_generated,omitempty" yaml:"report_generated,omitempty"`
}

// Has reports whether the given required field has been answered
func (r *IntakeRecord) Has(f Field) bool {
	switch f {
	case FieldName:
		return r.Name != nil
	case FieldAge:
		return r.Age != nil
	case FieldMedicaid:
		return r.MedicaidStatus != nil
	case FieldDisability:
		return r.DisabilityType != nil
	case FieldHousing:
		return r.HousingStatus != nil
	default:
		return false
	}
}

// IsComplete reports whether every required field has been answered
func (r *IntakeRecord) IsComplete() bool {
	for _, f := range RequiredFields {
		if !r.Has(f) {
			return false
		}
	}
	return true
}

// IsAssessed reports whether assessment fields are present
func (r *IntakeRecord) IsAssessed() bool {
	return r.Eligible != nil && r.EligibilityScore != nil
}

// ClearAssessment removes the derived assessment fields. ReportGenerated is kept.
func (r *IntakeRecord) ClearAssessment() {
	r.Eligible = nil
	r.EligibilityScore = nil
	r.EligibilityReasons = nil
}

// ApplyAssessment writes all assessment fields at once
func (r *IntakeRecord) ApplyAssessment(a Assessment) {
	eligible := a.Eligible
	score := a.Score
	r.Eligible = &eligible
	r.EligibilityScore = &score
	r.EligibilityReasons = append([]string(nil), a.Reasons...)
}

// Clone returns a deep copy of the record
func (r *IntakeRecord) Clone() IntakeRecord {
	out := IntakeRecord{ReportGenerated: r.ReportGenerated}
	if r.Name != nil {
		out.Name = StringPtr(*r.Name)
	}
	if r.Age != nil {
		out.Age = IntPtr(*r.Age)
	}
	if r.MedicaidStatus != nil {
		out.MedicaidStatus = BoolPtr(*r.MedicaidStatus)
	}
	if r.DisabilityType != nil {
		out.DisabilityType = StringPtr(*r.DisabilityType)
	}
	if r.HousingStatus != nil {
		out.HousingStatus = StringPtr(*r.HousingStatus)
	}
	if r.Eligible != nil {
		out.Eligible = BoolPtr(*r.Eligible)
	}
	if r.EligibilityScore != nil {
		out.EligibilityScore = IntPtr(*r.EligibilityScore)
	}
	if r.EligibilityReasons != nil {
		out.EligibilityReasons = append([]string{}, r.EligibilityReasons...)
	}
	return out
}

// DisplayName returns the client name or "Unknown" when it was not collected
func (r *IntakeRecord) DisplayName() string {
	if r.Name == nil || *r.Name == "" {
		return "Unknown"
	}
	return *r.Name
}

// Assessment is the scorer output for a complete record
type Assessment struct {
	Score    int      `json:"score"`
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons"`
}

func StringPtr(s string) *string { return &s }
func IntPtr(i int) *int          { return &i }
func BoolPtr(b bool) *bool       { return &b }
