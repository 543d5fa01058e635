package repository

import (
	"fmt"
	"strings"

	"github.com/imwg-risk-calculator/internal/domain"
)

// dialect captures the SQL differences between PostgreSQL and SQLite that listing depends on.
type dialect struct {
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string
	// position is the substring search function, strpos or instr.
	position string
}

var (
	postgresDialect = dialect{
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		position:    "strpos",
	}
	sqliteDialect = dialect{
		placeholder: func(int) string { return "?" },
		position:    "instr",
	}
)

// buildListQuery renders the WHERE/ORDER/LIMIT tail of an assessment listing.
func buildListQuery(f domain.AssessmentFilter, d dialect) (string, []interface{}) {
	ph := d.placeholder
	var (
		conds []string
		args  []interface{}
	)
	add := func(expr string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(expr, ph(len(args))))
	}

	if f.PatientID != "" {
		add("patient_id = %s", f.PatientID)
	}
	if f.PhysicianName != "" {
		add(d.position+"(lower(physician_name), lower(%s)) > 0", f.PhysicianName)
	}
	if f.RiskResult != "" {
		add("risk_result = %s", f.RiskResult)
	}
	if f.Status != "" {
		add("status = %s", f.Status)
	}

	var b strings.Builder
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")

	args = append(args, f.Limit)
	fmt.Fprintf(&b, " LIMIT %s", ph(len(args)))
	args = append(args, f.Skip)
	fmt.Fprintf(&b, " OFFSET %s", ph(len(args)))

	return b.String(), args
}

func nonNilFactors(f []domain.RiskFactor) []domain.RiskFactor {
	if f == nil {
		return []domain.RiskFactor{}
	}
	return f
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
