package domain

import (
	"time"
)

// Assessment is a patient's IMWG risk assessment record.
type Assessment struct {
	ID          string `json:"id"`
	PatientID   string `json:"patient_id,omitempty"`
	PatientName string `json:"patient_name,omitempty"`

	// Cytogenetic criteria, each "positive" or "negative"
	Del17pTP53         string `json:"del17p_tp53"`
	TranslocationCombo string `json:"translocation_combo"`
	Del1p32_1q         string `json:"del1p32_1q"`

	// Laboratory values; nil when not measured
	B2MValue        *float64 `json:"b2m_value"`        // mg/L
	CreatinineValue *float64 `json:"creatinine_value"` // mg/dL

	ClinicalNotes string `json:"clinical_notes,omitempty"`
	PhysicianName string `json:"physician_name,omitempty"`
	Institution   string `json:"institution,omitempty"`

	// Derived fields, written from a RiskCalculationResult
	RiskResult       *RiskResult  `json:"risk_result"`
	RiskFactors      []RiskFactor `json:"risk_factors"`
	TotalRiskFactors int          `json:"total_risk_factors"`

	Status    AssessmentStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Version   int              `json:"version"`
}

// AssessmentCreate carries the caller-supplied fields of a new assessment.
type AssessmentCreate struct {
	PatientID          string   `json:"patient_id,omitempty"`
	PatientName        string   `json:"patient_name,omitempty"`
	Del17pTP53         string   `json:"del17p_tp53"`
	TranslocationCombo string   `json:"translocation_combo"`
	Del1p32_1q         string   `json:"del1p32_1q"`
	B2MValue           *float64 `json:"b2m_value,omitempty"`
	CreatinineValue    *float64 `json:"creatinine_value,omitempty"`
	ClinicalNotes      string   `json:"clinical_notes,omitempty"`
	PhysicianName      string   `json:"physician_name,omitempty"`
	Institution        string   `json:"institution,omitempty"`
}

// NewAssessment builds a DRAFT assessment from the request with the given id and timestamp.
func (c *AssessmentCreate) NewAssessment(id string, now time.Time) *Assessment {
	return &Assessment{
		ID:                 id,
		PatientID:          c.PatientID,
		PatientName:        c.PatientName,
		Del17pTP53:         c.Del17pTP53,
		TranslocationCombo: c.TranslocationCombo,
		Del1p32_1q:         c.Del1p32_1q,
		B2MValue:           copyFloat(c.B2MValue),
		CreatinineValue:    copyFloat(c.CreatinineValue),
		ClinicalNotes:      c.ClinicalNotes,
		PhysicianName:      c.PhysicianName,
		Institution:        c.Institution,
		RiskFactors:        []RiskFactor{},
		Status:             DRAFT,
		CreatedAt:          now,
		UpdatedAt:          now,
		Version:            1,
	}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Clone returns a deep copy of the assessment.
func (a *Assessment) Clone() *Assessment {
	c := *a
	c.B2MValue = copyFloat(a.B2MValue)
	c.CreatinineValue = copyFloat(a.CreatinineValue)
	if a.RiskResult != nil {
		r := *a.RiskResult
		c.RiskResult = &r
	}
	if a.RiskFactors != nil {
		c.RiskFactors = append([]RiskFactor{}, a.RiskFactors...)
	}
	return &c
}

// AssessmentUpdate carries a partial update. Nil fields are left unchanged.
type AssessmentUpdate struct {
	PatientName        *string  `json:"patient_name,omitempty"`
	Del17pTP53         *string  `json:"del17p_tp53,omitempty"`
	TranslocationCombo *string  `json:"translocation_combo,omitempty"`
	Del1p32_1q         *string  `json:"del1p32_1q,omitempty"`
	B2MValue           *float64 `json:"b2m_value,omitempty"`
	CreatinineValue    *float64 `json:"creatinine_value,omitempty"`
	ClinicalNotes      *string  `json:"clinical_notes,omitempty"`
	PhysicianName      *string  `json:"physician_name,omitempty"`
	Institution        *string  `json:"institution,omitempty"`
}

// Apply copies every non-nil field onto a and returns the applied values keyed by
// their JSON names.
func (u *AssessmentUpdate) Apply(a *Assessment) map[string]interface{} {
	applied := make(map[string]interface{})
	setString := func(key string, src *string, dst *string) {
		if src != nil {
			*dst = *src
			applied[key] = *src
		}
	}
	setFloat := func(key string, src *float64, dst **float64) {
		if src != nil {
			v := *src
			*dst = &v
			applied[key] = v
		}
	}

	setString("patient_name", u.PatientName, &a.PatientName)
	setString("del17p_tp53", u.Del17pTP53, &a.Del17pTP53)
	setString("translocation_combo", u.TranslocationCombo, &a.TranslocationCombo)
	setString("del1p32_1q", u.Del1p32_1q, &a.Del1p32_1q)
	setFloat("b2m_value", u.B2MValue, &a.B2MValue)
	setFloat("creatinine_value", u.CreatinineValue, &a.CreatinineValue)
	setString("clinical_notes", u.ClinicalNotes, &a.ClinicalNotes)
	setString("physician_name", u.PhysicianName, &a.PhysicianName)
	setString("institution", u.Institution, &a.Institution)

	return applied
}

// RiskFactor is one matched IMWG criterion.
type RiskFactor struct {
	ID          CriterionID `json:"id"`
	Criterion   string      `json:"criterion"`
	Description string      `json:"description"`
	IsPositive  bool        `json:"is_positive"`
}

// RiskCalculationResult ties one assessment to a computed classification.
// It is never mutated after creation; every calculation is stored as a new record.
type RiskCalculationResult struct {
	ID                     string       `json:"id,omitempty"`
	AssessmentID           string       `json:"assessment_id"`
	RiskResult             RiskResult   `json:"risk_result"`
	RiskFactors            []RiskFactor `json:"risk_factors"`
	TotalRiskFactors       int          `json:"total_risk_factors"`
	ClinicalInterpretation string       `json:"clinical_interpretation"`
	Recommendations        []string     `json:"recommendations"`
	CalculatedAt           time.Time    `json:"calculated_at"`
}

// ApplyTo writes the derived fields of the result onto the assessment and marks it
// COMPLETED.
func (r *RiskCalculationResult) ApplyTo(a *Assessment, now time.Time) {
	result := r.RiskResult
	a.RiskResult = &result
	a.RiskFactors = append([]RiskFactor(nil), r.RiskFactors...)
	a.TotalRiskFactors = r.TotalRiskFactors
	a.Status = COMPLETED
	a.UpdatedAt = now
}

// HistoryEntry is an immutable audit record of one action taken on an assessment.
type HistoryEntry struct {
	ID           string                 `json:"id"`
	AssessmentID string                 `json:"assessment_id"`
	PatientID    string                 `json:"patient_id,omitempty"`
	Action       HistoryAction          `json:"action"`
	Changes      map[string]interface{} `json:"changes"`
	PerformedBy  string                 `json:"performed_by,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	Notes        string                 `json:"notes,omitempty"`
}

// AssessmentFilter selects assessments for listing.
type AssessmentFilter struct {
	PatientID     string
	PhysicianName string // case-insensitive substring match
	RiskResult    string
	Status        string
	Skip          int
	Limit         int
}

// Pagination bounds for assessment listing.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Normalize applies the default limit and checks the paging bounds.
func (f *AssessmentFilter) Normalize() error {
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	if f.Skip < 0 {
		return NewValidationErrors("skip must be greater than or equal to 0")
	}
	if f.Limit < 1 || f.Limit > MaxListLimit {
		return NewValidationErrors("limit must be between 1 and 1000")
	}
	return nil
}

// RISSInput carries the values needed for Revised International Staging System staging.
type RISSInput struct {
	PatientName  string   `json:"patient_name,omitempty"`
	B2MValue     *float64 `json:"b2m_value"`     // mg/L
	AlbuminValue *float64 `json:"albumin_value"` // g/dL
	LDHStatus    string   `json:"ldh_status"`    // "normal" or "elevated"
	FISHRisk     string   `json:"fish_risk"`     // "standard" or "high"
}

// RISSResult is the computed R-ISS stage.
type RISSResult struct {
	ISSStage       string        `json:"iss_stage"`
	RISSStage      string        `json:"riss_stage"`
	StageName      string        `json:"stage_name"`
	Prognosis      string        `json:"prognosis"`
	MedianOS       string        `json:"median_os"`
	Interpretation string        `json:"interpretation"`
	LabValues      RISSLabValues `json:"lab_values"`
}

// RISSLabValues echoes the inputs used for staging.
type RISSLabValues struct {
	B2M       float64 `json:"b2m"`
	Albumin   float64 `json:"albumin"`
	LDHStatus string  `json:"ldh_status"`
	FISHRisk  string  `json:"fish_risk"`
}
