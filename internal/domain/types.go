// Package domain contains core business entities and types for multiple myeloma risk
// classification following the IMWG (International Myeloma Working Group) high-risk criteria.
//
// The four criteria are del(17p)/TP53 mutation, high-risk translocations co-occurring with
// +1q/del(1p), del(1p32) patterns, and elevated β2-microglobulin with normal creatinine.
// Any single positive criterion classifies the patient as high risk.
package domain

import (
	"errors"
	"fmt"
)

// RiskResult represents the outcome of an IMWG risk calculation.
type RiskResult string

const (
	HIGH_RISK     RiskResult = "HIGH_RISK"
	STANDARD_RISK RiskResult = "STANDARD_RISK"
)

// AssessmentStatus represents the lifecycle state of an assessment.
// An assessment is DRAFT until its first successful calculation.
type AssessmentStatus string

const (
	DRAFT     AssessmentStatus = "DRAFT"
	COMPLETED AssessmentStatus = "COMPLETED"
)

// CriterionID identifies which IMWG rule produced a risk factor. Narrative generation
// switches on this identifier rather than on the human-readable criterion label.
type CriterionID string

const (
	CRITERION_DEL17P_TP53                CriterionID = "DEL17P_TP53"
	CRITERION_HIGH_RISK_TRANSLOCATION    CriterionID = "HIGH_RISK_TRANSLOCATION"
	CRITERION_DEL1P32                    CriterionID = "DEL1P32"
	CRITERION_HIGH_B2M_NORMAL_CREATININE CriterionID = "HIGH_B2M_NORMAL_CREATININE"
)

// HistoryAction tags an audit trail entry.
type HistoryAction string

const (
	ActionCreated    HistoryAction = "created"
	ActionUpdated    HistoryAction = "updated"
	ActionCalculated HistoryAction = "calculated"
	ActionDeleted    HistoryAction = "deleted"
)

// Categorical values accepted for the cytogenetic status fields.
const (
	StatusPositive = "positive"
	StatusNegative = "negative"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRiskResult = errors.New("invalid risk result")
	ErrInvalidStatus     = errors.New("invalid assessment status")
	ErrInvalidAction     = errors.New("invalid history action")
)

// IsValid reports whether the risk result is one of the defined values.
func (r RiskResult) IsValid() bool {
	switch r {
	case HIGH_RISK, STANDARD_RISK:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk result
func (r RiskResult) String() string {
	return string(r)
}

// Validate returns an error if the risk result is invalid
func (r RiskResult) Validate() error {
	if !r.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidRiskResult, string(r))
	}
	return nil
}

// IsValid reports whether the status is one of the defined values.
func (s AssessmentStatus) IsValid() bool {
	switch s {
	case DRAFT, COMPLETED:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status
func (s AssessmentStatus) String() string {
	return string(s)
}

// Validate returns an error if the status is invalid
func (s AssessmentStatus) Validate() error {
	if !s.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, string(s))
	}
	return nil
}

// IsValid reports whether the action is one of the four audited actions.
func (a HistoryAction) IsValid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionCalculated, ActionDeleted:
		return true
	default:
		return false
	}
}

// Validate returns an error if the action is invalid
func (a HistoryAction) Validate() error {
	if !a.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidAction, string(a))
	}
	return nil
}

// IsValid reports whether the criterion identifier is known.
func (c CriterionID) IsValid() bool {
	switch c {
	case CRITERION_DEL17P_TP53, CRITERION_HIGH_RISK_TRANSLOCATION,
		CRITERION_DEL1P32, CRITERION_HIGH_B2M_NORMAL_CREATININE:
		return true
	default:
		return false
	}
}

// IsCategoricalStatus reports whether v is an accepted cytogenetic status value.
func IsCategoricalStatus(v string) bool {
	return v == StatusPositive || v == StatusNegative
}
