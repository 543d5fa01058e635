package service

import (
	"fmt"
	"strings"

	"github.com/imwg-risk-calculator/internal/domain"
)

// criterionNote is an interpretation paragraph appended when a given rule fired.
type criterionNote struct {
	id   domain.CriterionID
	text string
}

var highRiskNotes = []criterionNote{
	{domain.CRITERION_DEL17P_TP53, "Note: del(17p) and/or TP53 mutations are associated with resistance to standard therapies and significantly shorter overall survival."},
	{domain.CRITERION_HIGH_RISK_TRANSLOCATION, "Note: High-risk translocations, especially when co-occurring with +1q and/or del(1p), significantly impact both progression-free and overall survival."},
	{domain.CRITERION_HIGH_B2M_NORMAL_CREATININE, "Note: Elevated β2-microglobulin with normal renal function indicates high tumor burden and poor prognosis."},
}

var highRiskBaseRecommendations = []string{
	"Consider intensive induction therapy with novel agents",
	"Evaluate for autologous stem cell transplantation eligibility",
	"Implement more frequent monitoring schedule",
	"Consider maintenance therapy post-transplant",
	"Discuss prognosis and treatment options with patient and family",
	"Consider enrollment in clinical trials for high-risk patients",
}

// criterionRecommendations are appended after the base list, in rule order.
var criterionRecommendations = []struct {
	id    domain.CriterionID
	items []string
}{
	{domain.CRITERION_DEL17P_TP53, []string{
		"Avoid alkylating agents due to del(17p)/TP53 mutations",
		"Consider immunomodulatory drugs and proteasome inhibitors",
	}},
	{domain.CRITERION_HIGH_RISK_TRANSLOCATION, []string{
		"Consider bortezomib-based regimens for t(4;14) patients",
		"Enhanced monitoring for early progression",
	}},
}

var standardRiskRecommendations = []string{
	"Standard treatment protocols are appropriate",
	"Regular monitoring with standard intervals",
	"Consider patient comorbidities in treatment planning",
	"Reassess risk factors during treatment course",
	"Monitor for development of high-risk features over time",
}

// GenerateInterpretation builds the clinical interpretation text for a classification.
func GenerateInterpretation(result domain.RiskResult, factors []domain.RiskFactor, a *domain.Assessment) string {
	var b strings.Builder

	if result == domain.HIGH_RISK {
		fmt.Fprintf(&b, "Patient meets criteria for High-Risk Multiple Myeloma based on %d positive risk factor(s):\n\n", len(factors))
		for i, f := range factors {
			fmt.Fprintf(&b, "%d. %s: %s\n", i+1, f.Criterion, f.Description)
		}
		b.WriteString("\nThis classification indicates a poorer prognosis and requires more intensive treatment strategies and closer monitoring.")

		for _, note := range highRiskNotes {
			if hasCriterion(factors, note.id) {
				b.WriteString("\n\n")
				b.WriteString(note.text)
			}
		}
		return b.String()
	}

	b.WriteString("Patient does not meet criteria for High-Risk Multiple Myeloma based on current assessment. ")
	b.WriteString("Standard risk classification allows for conventional treatment approaches with standard monitoring intervals.")

	if a != nil && a.B2MValue != nil && *a.B2MValue >= BorderlineB2MThreshold {
		fmt.Fprintf(&b, "\n\nNote: β2-microglobulin level of %s mg/L is elevated but does not meet high-risk criteria.",
			FormatLabValue(*a.B2MValue))
	}
	return b.String()
}

// GenerateRecommendations returns the ordered treatment recommendations for a classification.
func GenerateRecommendations(result domain.RiskResult, factors []domain.RiskFactor) []string {
	if result != domain.HIGH_RISK {
		return append([]string(nil), standardRiskRecommendations...)
	}

	recommendations := append([]string(nil), highRiskBaseRecommendations...)
	for _, block := range criterionRecommendations {
		if hasCriterion(factors, block.id) {
			recommendations = append(recommendations, block.items...)
		}
	}
	return recommendations
}
