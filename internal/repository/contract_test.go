package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imwg-risk-calculator/internal/domain"
)

var baseTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func floatPtr(v float64) *float64 { return &v }

func newTestAssessment(patientID string, createdAt time.Time) *domain.Assessment {
	req := &domain.AssessmentCreate{
		PatientID:          patientID,
		PatientName:        "Jane Doe",
		Del17pTP53:         domain.StatusNegative,
		TranslocationCombo: domain.StatusNegative,
		Del1p32_1q:         domain.StatusNegative,
		B2MValue:           floatPtr(3.2),
		PhysicianName:      "Dr. Alice Smith",
		Institution:        "General Hospital",
	}
	return req.NewAssessment(uuid.NewString(), createdAt)
}

func newTestCalculation(assessmentID string, at time.Time) *domain.RiskCalculationResult {
	return &domain.RiskCalculationResult{
		ID:           uuid.NewString(),
		AssessmentID: assessmentID,
		RiskResult:   domain.HIGH_RISK,
		RiskFactors: []domain.RiskFactor{{
			ID:          domain.CRITERION_DEL17P_TP53,
			Criterion:   "del(17p) and/or TP53 mutation",
			Description: "Present",
			IsPositive:  true,
		}},
		TotalRiskFactors:       1,
		ClinicalInterpretation: "Patient meets criteria for HIGH RISK multiple myeloma",
		Recommendations:        []string{"Consider clinical trial enrollment"},
		CalculatedAt:           at,
	}
}

// runRepositoryContract exercises behaviour every AssessmentRepository must share.
func runRepositoryContract(t *testing.T, repo domain.AssessmentRepository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		a := newTestAssessment("P-"+uuid.NewString(), baseTime)

		require.NoError(t, repo.Create(ctx, a))

		got, err := repo.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a, got)
		assert.Nil(t, got.CreatinineValue)
		assert.Nil(t, got.RiskResult)
		assert.NotNil(t, got.RiskFactors)
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("update", func(t *testing.T) {
		a := newTestAssessment("P-"+uuid.NewString(), baseTime)
		require.NoError(t, repo.Create(ctx, a))

		a.Del17pTP53 = domain.StatusPositive
		a.CreatinineValue = floatPtr(0.9)
		a.ClinicalNotes = "repeat FISH"
		a.UpdatedAt = baseTime.Add(time.Hour)
		require.NoError(t, repo.Update(ctx, a))

		got, err := repo.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPositive, got.Del17pTP53)
		assert.Equal(t, 0.9, *got.CreatinineValue)
		assert.Equal(t, "repeat FISH", got.ClinicalNotes)
		assert.Equal(t, baseTime.Add(time.Hour), got.UpdatedAt)
		assert.Equal(t, baseTime, got.CreatedAt)
	})

	t.Run("update unknown", func(t *testing.T) {
		a := newTestAssessment("P-x", baseTime)
		assert.ErrorIs(t, repo.Update(ctx, a), domain.ErrNotFound)
	})

	t.Run("list filters and ordering", func(t *testing.T) {
		patientID := "P-" + uuid.NewString()
		var ids []string
		for i := 0; i < 3; i++ {
			a := newTestAssessment(patientID, baseTime.Add(time.Duration(i)*time.Minute))
			if i == 2 {
				a.PhysicianName = "Dr. Bob Jones"
			}
			require.NoError(t, repo.Create(ctx, a))
			ids = append(ids, a.ID)
		}

		all, err := repo.List(ctx, domain.AssessmentFilter{PatientID: patientID, Limit: 10})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{ids[2], ids[1], ids[0]}, assessmentIDs(all))

		page, err := repo.List(ctx, domain.AssessmentFilter{PatientID: patientID, Limit: 1, Skip: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{ids[1]}, assessmentIDs(page))

		smiths, err := repo.List(ctx, domain.AssessmentFilter{PatientID: patientID, PhysicianName: "SMITH", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{ids[1], ids[0]}, assessmentIDs(smiths))

		completed, err := repo.List(ctx, domain.AssessmentFilter{PatientID: patientID, Status: string(domain.COMPLETED), Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, completed)
		assert.NotNil(t, completed)
	})

	t.Run("save calculation", func(t *testing.T) {
		a := newTestAssessment("P-"+uuid.NewString(), baseTime)
		require.NoError(t, repo.Create(ctx, a))

		first := newTestCalculation(a.ID, baseTime.Add(time.Minute))
		second := newTestCalculation(a.ID, baseTime.Add(2*time.Minute))
		require.NoError(t, repo.SaveCalculation(ctx, first))
		require.NoError(t, repo.SaveCalculation(ctx, second))

		got, err := repo.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.COMPLETED, got.Status)
		require.NotNil(t, got.RiskResult)
		assert.Equal(t, domain.HIGH_RISK, *got.RiskResult)
		assert.Equal(t, 1, got.TotalRiskFactors)
		assert.Equal(t, second.RiskFactors, got.RiskFactors)
		assert.Equal(t, second.CalculatedAt, got.UpdatedAt)

		calcs, err := repo.ListCalculations(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, calcs, 2)
		assert.Equal(t, second, calcs[0])
		assert.Equal(t, first, calcs[1])

		highRisk, err := repo.List(ctx, domain.AssessmentFilter{
			PatientID:  a.PatientID,
			RiskResult: string(domain.HIGH_RISK),
			Limit:      10,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{a.ID}, assessmentIDs(highRisk))
	})

	t.Run("save calculation for unknown assessment", func(t *testing.T) {
		calc := newTestCalculation(uuid.NewString(), baseTime)
		assert.ErrorIs(t, repo.SaveCalculation(ctx, calc), domain.ErrNotFound)

		calcs, err := repo.ListCalculations(ctx, calc.AssessmentID)
		require.NoError(t, err)
		assert.Empty(t, calcs)
	})

	t.Run("delete", func(t *testing.T) {
		a := newTestAssessment("P-"+uuid.NewString(), baseTime)
		require.NoError(t, repo.Create(ctx, a))
		require.NoError(t, repo.SaveCalculation(ctx, newTestCalculation(a.ID, baseTime)))

		require.NoError(t, repo.Delete(ctx, a.ID))

		_, err := repo.GetByID(ctx, a.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		calcs, err := repo.ListCalculations(ctx, a.ID)
		require.NoError(t, err)
		assert.Empty(t, calcs)

		assert.ErrorIs(t, repo.Delete(ctx, a.ID), domain.ErrNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, repo.Ping(ctx))
	})
}

func assessmentIDs(list []*domain.Assessment) []string {
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	return ids
}

func TestBuildListQuery(t *testing.T) {
	tests := []struct {
		name     string
		filter   domain.AssessmentFilter
		dialect  dialect
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:     "no filters postgres",
			filter:   domain.AssessmentFilter{Limit: 100},
			dialect:  postgresDialect,
			wantSQL:  " ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2",
			wantArgs: []interface{}{100, 0},
		},
		{
			name: "all filters postgres",
			filter: domain.AssessmentFilter{
				PatientID:     "P1",
				PhysicianName: "smith",
				RiskResult:    "HIGH_RISK",
				Status:        "COMPLETED",
				Limit:         10,
				Skip:          20,
			},
			dialect: postgresDialect,
			wantSQL: " WHERE patient_id = $1 AND strpos(lower(physician_name), lower($2)) > 0" +
				" AND risk_result = $3 AND status = $4" +
				" ORDER BY created_at DESC, id DESC LIMIT $5 OFFSET $6",
			wantArgs: []interface{}{"P1", "smith", "HIGH_RISK", "COMPLETED", 10, 20},
		},
		{
			name:     "physician sqlite",
			filter:   domain.AssessmentFilter{PhysicianName: "smith", Limit: 5},
			dialect:  sqliteDialect,
			wantSQL:  " WHERE instr(lower(physician_name), lower(?)) > 0 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
			wantArgs: []interface{}{"smith", 5, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildListQuery(tt.filter, tt.dialect)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args, fmt.Sprintf("args for %s", tt.name))
		})
	}
}
