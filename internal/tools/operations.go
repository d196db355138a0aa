package tools

import (
	"strings"

	"github.com/ppiankov/intake/internal/model"
)

// Operation is one of the closed set of actions a driver may invoke
type Operation string

const (
	OpSetName       Operation = "set-name"
	OpSetAge        Operation = "set-age"
	OpSetMedicaid   Operation = "set-medicaid"
	OpSetDisability Operation = "set-disability"
	OpSetHousing    Operation = "set-housing"
	OpAssess        Operation = "assess"
	OpNextQuestion  Operation = "next-question"
	OpLoadPreset    Operation = "load-preset"
	OpReset         Operation = "reset"
	OpSummary       Operation = "summary"
)

// Spec describes an operation for drivers that expose it to a caller
type Spec struct {
	Op          Operation `json:"name"`
	Description string    `json:"description"`
	Argument    string    `json:"argument,omitempty"` // empty when the operation takes none
	ArgumentDoc string    `json:"argument_description,omitempty"`
}

// HasArgument reports whether the operation takes an argument
func (s Spec) HasArgument() bool { return s.Argument != "" }

// ToolName returns the operation name with dashes replaced, for callers
// that only accept identifier-style names
func (s Spec) ToolName() string {
	return strings.ReplaceAll(string(s.Op), "-", "_")
}

var catalog = []Spec{
	{OpSetName, "Collect and validate the client's full name.", "name", "The client's full name"},
	{OpSetAge, "Collect and validate the client's age (0-120).", "age", "The client's age as a whole number"},
	{OpSetMedicaid, "Collect the client's Medicaid status.", "has_medicaid", "yes/y/true/1 or no/n/false/0"},
	{OpSetDisability, "Collect the client's disability type. An empty answer records no disability.", "disability", "The type of disability, or empty for none"},
	{OpSetHousing, "Collect the client's current housing status.", "housing", "For example homeless, at risk of homelessness, stably housed"},
	{OpAssess, "Assess eligibility for SHS Housing Stabilization Services from the collected answers. The first assessment of a record generates a report and emails it to staff.", "", ""},
	{OpNextQuestion, "Get the next question to ask, based on which answers are still missing.", "", ""},
	{OpLoadPreset, "Replace all answers with a pre-built test client.", "client_key", "Preset key, for example test_client_1"},
	{OpReset, "Clear all answers, the assessment and the report status to start a new intake.", "", ""},
	{OpSummary, "Show the answers collected so far and the current assessment.", "", ""},
}

// Catalog returns the operation specs in a stable order
func Catalog() []Spec {
	return append([]Spec(nil), catalog...)
}

// Lookup returns the spec for an operation name. Underscored names
// (set_age) are accepted as well as dashed ones.
func Lookup(name string) (Spec, bool) {
	op := Operation(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-"))
	for _, s := range catalog {
		if s.Op == op {
			return s, true
		}
	}
	return Spec{}, false
}

var setters = map[Operation]model.Field{
	OpSetName:       model.FieldName,
	OpSetAge:        model.FieldAge,
	OpSetMedicaid:   model.FieldMedicaid,
	OpSetDisability: model.FieldDisability,
	OpSetHousing:    model.FieldHousing,
}

// FieldOf returns the record field a set-* operation writes
func FieldOf(op Operation) (model.Field, bool) {
	f, ok := setters[op]
	return f, ok
}
