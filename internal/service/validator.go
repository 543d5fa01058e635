package service

import (
	"github.com/imwg-risk-calculator/internal/domain"
)

// Laboratory bounds accepted by the validator.
const (
	MaxB2MValue        = 50.0 // mg/L
	MaxCreatinineValue = 20.0 // mg/dL
)

// categoricalField describes one cytogenetic status input and the label used in its messages.
type categoricalField struct {
	label string
	value func(a *domain.Assessment) string
}

var categoricalFields = []categoricalField{
	{"del(17p) and/or TP53 mutation status", func(a *domain.Assessment) string { return a.Del17pTP53 }},
	{"High-risk translocation status", func(a *domain.Assessment) string { return a.TranslocationCombo }},
	{"del(1p32) patterns status", func(a *domain.Assessment) string { return a.Del1p32_1q }},
}

// ValidateAssessment checks the assessment inputs against the domain constraints.
// Every violation is collected; the returned messages keep the order in which the
// fields are checked.
func ValidateAssessment(a *domain.Assessment) (bool, []string) {
	var errs []string

	for _, f := range categoricalFields {
		v := f.value(a)
		switch {
		case v == "":
			errs = append(errs, f.label+" is required")
		case !domain.IsCategoricalStatus(v):
			errs = append(errs, f.label+" must be 'positive' or 'negative'")
		}
	}

	if a.B2MValue != nil {
		if *a.B2MValue < 0 || *a.B2MValue > MaxB2MValue {
			errs = append(errs, "β2-microglobulin value must be between 0 and 50 mg/L")
		}
		if a.CreatinineValue == nil {
			errs = append(errs, "Creatinine value is required when β2-microglobulin is provided")
		}
	}

	if a.CreatinineValue != nil {
		if *a.CreatinineValue < 0 || *a.CreatinineValue > MaxCreatinineValue {
			errs = append(errs, "Creatinine value must be between 0 and 20 mg/dL")
		}
		if a.B2MValue == nil {
			errs = append(errs, "β2-microglobulin value is required when creatinine is provided")
		}
	}

	return len(errs) == 0, errs
}

// ValidationError converts validator output into an error, or nil when there is nothing to report.
func ValidationError(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return domain.NewValidationErrors(errs...)
}
