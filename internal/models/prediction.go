package models

// Label is the human-facing classifier outcome.
type Label string

const (
	LabelNo  Label = "No"
	LabelYes Label = "Yes"
)

// LabelForClass maps the classifier's raw output onto a Label.
func LabelForClass(class int) (Label, bool) {
	switch class {
	case 0:
		return LabelNo, true
	case 1:
		return LabelYes, true
	}
	return "", false
}

// Prediction is the result of a single predict call.
type Prediction struct {
	RequestID      string
	Class          int
	Label          Label
	Probability    float64
	HasProbability bool
}
