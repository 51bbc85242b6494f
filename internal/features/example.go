package features

import "github.com/miradorstack/attrition-predictor/internal/models"

// ExampleRecord returns a complete, valid employee row in the shape of the
// training data, including the columns the pipeline drops.
func ExampleRecord() models.RawRecord {
	return models.RawRecord{
		"Age":                      41,
		"Attrition":                "Yes",
		"BusinessTravel":           "Travel_Rarely",
		"DailyRate":                1102,
		"Department":               "Sales",
		"DistanceFromHome":         1,
		"Education":                2,
		"EducationField":           "Life Sciences",
		"EmployeeCount":            1,
		"EmployeeNumber":           1,
		"EnvironmentSatisfaction":  2,
		"Gender":                   "Female",
		"HourlyRate":               94,
		"JobInvolvement":           3,
		"JobLevel":                 2,
		"JobRole":                  "Sales Executive",
		"JobSatisfaction":          4,
		"MaritalStatus":            "Single",
		"MonthlyIncome":            5000,
		"MonthlyRate":              19479,
		"NumCompaniesWorked":       5,
		"Over18":                   "Y",
		"OverTime":                 "Yes",
		"PercentSalaryHike":        17,
		"PerformanceRating":        3,
		"RelationshipSatisfaction": 1,
		"StandardHours":            80,
		"StockOptionLevel":         0,
		"TotalWorkingYears":        8,
		"TrainingTimesLastYear":    0,
		"WorkLifeBalance":          1,
		"YearsAtCompany":           6,
		"YearsInCurrentRole":       4,
		"YearsSinceLastPromotion":  0,
		"YearsWithCurrManager":     5,
	}
}
