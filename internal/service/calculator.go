package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imwg-risk-calculator/internal/domain"
)

// Calculator composes the IMWG classifier and the narrative generator into a single
// calculation result. It holds no state between calls and is safe for concurrent use.
type Calculator struct {
	logger *logrus.Logger
	clock  domain.Clock
}

// NewCalculator creates a calculator. A nil clock defaults to time.Now.
func NewCalculator(logger *logrus.Logger, clock domain.Clock) *Calculator {
	if clock == nil {
		clock = time.Now
	}
	return &Calculator{
		logger: logger,
		clock:  clock,
	}
}

// Calculate classifies the assessment snapshot and returns a complete result.
// The assessment is not modified; persisting derived fields is the caller's job.
func (c *Calculator) Calculate(a *domain.Assessment) (*domain.RiskCalculationResult, error) {
	if a == nil {
		return nil, &domain.ComputationError{Cause: errors.New("assessment snapshot is nil")}
	}
	if err := checkFinite("β2-microglobulin", a.B2MValue); err != nil {
		return nil, &domain.ComputationError{AssessmentID: a.ID, Cause: err}
	}
	if err := checkFinite("creatinine", a.CreatinineValue); err != nil {
		return nil, &domain.ComputationError{AssessmentID: a.ID, Cause: err}
	}

	factors := ClassifyRisk(a)
	result := DetermineRiskResult(factors)

	calc := &domain.RiskCalculationResult{
		AssessmentID:           a.ID,
		RiskResult:             result,
		RiskFactors:            factors,
		TotalRiskFactors:       len(factors),
		ClinicalInterpretation: GenerateInterpretation(result, factors, a),
		Recommendations:        GenerateRecommendations(result, factors),
		CalculatedAt:           c.clock().UTC(),
	}

	c.logger.WithFields(logrus.Fields{
		"assessment_id":      a.ID,
		"risk_result":        calc.RiskResult,
		"total_risk_factors": calc.TotalRiskFactors,
	}).Debug("Computed IMWG risk classification")

	return calc, nil
}

func checkFinite(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return fmt.Errorf("%s value is not a finite number", name)
	}
	return nil
}
