package intake

import "github.com/ppiankov/intake/internal/model"

// Question is the interview prompt for a required field
type Question struct {
	Field model.Field
	Text  string
}

// Questions are asked in model.RequiredFields order
var Questions = []Question{
	{Field: model.FieldName, Text: "Let's get started! What is your full name?"},
	{Field: model.FieldAge, Text: "How old are you?"},
	{Field: model.FieldMedicaid, Text: "Are you currently on Medicaid? (yes/no)"},
	{Field: model.FieldDisability, Text: "Do you have a disability? If so, what type? (If not, you can say 'none')"},
	{Field: model.FieldHousing, Text: "What is your current housing situation? (e.g., homeless, at risk, stably housed)"},
}

// QuestionFor returns the prompt for f
func QuestionFor(f model.Field) (string, bool) {
	for _, q := range Questions {
		if q.Field == f {
			return q.Text, true
		}
	}
	return "", false
}
