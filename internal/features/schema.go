package features

import (
	"fmt"
	"sort"
)

// Columns read as integers, in the order they survive in the training frame.
// NumCompaniesWorked and PercentSalaryHike come last because training re-appended
// them after bucketing.
var numericColumns = []string{
	"Age",
	"DailyRate",
	"DistanceFromHome",
	"Education",
	"EnvironmentSatisfaction",
	"HourlyRate",
	"JobInvolvement",
	"JobLevel",
	"JobSatisfaction",
	"MonthlyIncome",
	"MonthlyRate",
	"PerformanceRating",
	"RelationshipSatisfaction",
	"StockOptionLevel",
	"TotalWorkingYears",
	"TrainingTimesLastYear",
	"WorkLifeBalance",
	"YearsAtCompany",
	"YearsInCurrentRole",
	"YearsSinceLastPromotion",
	"YearsWithCurrManager",
	"NumCompaniesWorked",
	"PercentSalaryHike",
}

// categorical is a one-hot encoded column. Levels are sorted; Levels[0] is the
// reference level and gets no dummy column.
type categorical struct {
	Name   string
	Levels []string
}

func (c categorical) dummies() []string {
	out := make([]string, 0, len(c.Levels)-1)
	for _, level := range c.Levels[1:] {
		out = append(out, c.Name+"_"+level)
	}
	return out
}

// yesNo reports whether the category is a plain Yes/No flag, which is the only
// case where boolean input is accepted.
func (c categorical) yesNo() bool {
	return len(c.Levels) == 2 && c.Levels[0] == "No" && c.Levels[1] == "Yes"
}

// Training-time level sets, in encoding order.
var categoricals = []categorical{
	{Name: "BusinessTravel", Levels: []string{"Non-Travel", "Travel_Frequently", "Travel_Rarely"}},
	{Name: "EducationField", Levels: []string{"Human Resources", "Life Sciences", "Marketing", "Medical", "Other", "Technical Degree"}},
	{Name: "JobRole", Levels: []string{
		"Healthcare Representative",
		"Human Resources",
		"Laboratory Technician",
		"Manager",
		"Manufacturing Director",
		"Research Director",
		"Research Scientist",
		"Sales Executive",
		"Sales Representative",
	}},
	{Name: "MaritalStatus", Levels: []string{"Divorced", "Married", "Single"}},
	{Name: "OverTime", Levels: []string{"No", "Yes"}},
}

// Constant in the training data; dropped before anything else.
var constantColumns = []string{"EmployeeCount", "StandardHours"}

// Identifiers and columns the deployed model was trained without.
var excludedColumns = []string{"EmployeeNumber", "Over18", "Gender", "Department"}

const labelColumn = "Attrition"

var labelLevels = categorical{Name: labelColumn, Levels: []string{"No", "Yes"}}

var (
	goldenColumns = buildGoldenColumns()
	columnIndex   = buildColumnIndex(goldenColumns)
	knownFields   = buildKnownFields()
)

func buildGoldenColumns() []string {
	cols := append([]string(nil), numericColumns...)
	for _, c := range categoricals {
		if !sort.StringsAreSorted(c.Levels) || len(c.Levels) < 2 {
			panic(fmt.Sprintf("features: levels for %s must be sorted and have a reference level", c.Name))
		}
		cols = append(cols, c.dummies()...)
	}
	return cols
}

func buildColumnIndex(cols []string) map[string]int {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		if _, dup := idx[c]; dup {
			panic("features: duplicate column " + c)
		}
		idx[c] = i
	}
	return idx
}

func buildKnownFields() map[string]struct{} {
	known := make(map[string]struct{})
	for _, group := range [][]string{numericColumns, constantColumns, excludedColumns, {labelColumn}} {
		for _, name := range group {
			known[name] = struct{}{}
		}
	}
	for _, c := range categoricals {
		known[c.Name] = struct{}{}
	}
	return known
}

// GoldenColumns returns a copy of the feature order the scaler and classifier were fit on.
func GoldenColumns() []string {
	return append([]string(nil), goldenColumns...)
}

// Width is the number of columns in every encoded vector.
func Width() int {
	return len(goldenColumns)
}

// RequiredFields lists the input columns the pipeline reads, numeric first.
func RequiredFields() []string {
	out := append([]string(nil), numericColumns...)
	for _, c := range categoricals {
		out = append(out, c.Name)
	}
	return out
}

// OptionalFields lists input columns that are accepted and dropped unread.
func OptionalFields() []string {
	out := append([]string(nil), constantColumns...)
	out = append(out, excludedColumns...)
	return append(out, labelColumn)
}

// Levels returns the training-time levels of a categorical field, reference level first.
func Levels(field string) ([]string, bool) {
	for _, c := range categoricals {
		if c.Name == field {
			return append([]string(nil), c.Levels...), true
		}
	}
	return nil, false
}
