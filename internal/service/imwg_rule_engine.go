package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/imwg-risk-calculator/internal/domain"
)

// IMWG laboratory thresholds for the β2-microglobulin criterion.
const (
	HighB2MThreshold        = 5.5 // mg/L, inclusive
	NormalCreatinineCeiling = 1.2 // mg/dL, exclusive
	BorderlineB2MThreshold  = 4.0 // mg/L, used only in the standard-risk narrative
)

// imwgRule pairs a predicate over the assessment with the factor it produces.
type imwgRule struct {
	id      domain.CriterionID
	matches func(a *domain.Assessment) bool
	factor  func(a *domain.Assessment) domain.RiskFactor
}

// imwgRules is evaluated top to bottom. The order is the order of the resulting factors.
var imwgRules = []imwgRule{
	{
		id:      domain.CRITERION_DEL17P_TP53,
		matches: func(a *domain.Assessment) bool { return a.Del17pTP53 == domain.StatusPositive },
		factor: fixedFactor(
			"del(17p) and/or TP53 mutation",
			"Assessed using NGS-based method with CCF ≥20% on CD138-positive cells"),
	},
	{
		id:      domain.CRITERION_HIGH_RISK_TRANSLOCATION,
		matches: func(a *domain.Assessment) bool { return a.TranslocationCombo == domain.StatusPositive },
		factor: fixedFactor(
			"High-risk translocation",
			"One of these translocations—t(4;14) or t(14;16) or t(14;20)—co-occurring with +1q and/or del(1p)"),
	},
	{
		id:      domain.CRITERION_DEL1P32,
		matches: func(a *domain.Assessment) bool { return a.Del1p32_1q == domain.StatusPositive },
		factor: fixedFactor(
			"del(1p32) patterns",
			"Monoallelic del(1p32) with +1q OR biallelic del(1p32)"),
	},
	{
		id: domain.CRITERION_HIGH_B2M_NORMAL_CREATININE,
		matches: func(a *domain.Assessment) bool {
			return a.B2MValue != nil && a.CreatinineValue != nil &&
				*a.B2MValue >= HighB2MThreshold && *a.CreatinineValue < NormalCreatinineCeiling
		},
		factor: func(a *domain.Assessment) domain.RiskFactor {
			return domain.RiskFactor{
				Criterion: "High β2-microglobulin with normal creatinine",
				Description: fmt.Sprintf("β2M: %s mg/L (≥5.5) with creatinine: %s mg/dL (<1.2)",
					FormatLabValue(*a.B2MValue), FormatLabValue(*a.CreatinineValue)),
				IsPositive: true,
			}
		},
	},
}

func fixedFactor(criterion, description string) func(*domain.Assessment) domain.RiskFactor {
	return func(*domain.Assessment) domain.RiskFactor {
		return domain.RiskFactor{
			Criterion:   criterion,
			Description: description,
			IsPositive:  true,
		}
	}
}

// ClassifyRisk evaluates the IMWG criteria in fixed order and returns the matched
// risk factors. The result is never nil.
func ClassifyRisk(a *domain.Assessment) []domain.RiskFactor {
	factors := make([]domain.RiskFactor, 0, len(imwgRules))
	for _, rule := range imwgRules {
		if rule.matches(a) {
			f := rule.factor(a)
			f.ID = rule.id
			factors = append(factors, f)
		}
	}
	return factors
}

// DetermineRiskResult maps matched factors to the overall result: any factor means high risk.
func DetermineRiskResult(factors []domain.RiskFactor) domain.RiskResult {
	if len(factors) > 0 {
		return domain.HIGH_RISK
	}
	return domain.STANDARD_RISK
}

// hasCriterion reports whether a factor produced by the given rule is present.
func hasCriterion(factors []domain.RiskFactor, id domain.CriterionID) bool {
	for _, f := range factors {
		if f.ID == id {
			return true
		}
	}
	return false
}

// FormatLabValue renders a lab value with the shortest exact decimal form, always
// keeping one fractional digit (6 -> "6.0", 0.8 -> "0.8", 5.55 -> "5.55").
func FormatLabValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
