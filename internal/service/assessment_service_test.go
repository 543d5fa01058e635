package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/imwg-risk-calculator/internal/domain"
)

// MockAssessmentRepository is a mock implementation of domain.AssessmentRepository
type MockAssessmentRepository struct {
	mock.Mock
}

func (m *MockAssessmentRepository) Create(ctx context.Context, a *domain.Assessment) error {
	return m.Called(ctx, a).Error(0)
}

func (m *MockAssessmentRepository) GetByID(ctx context.Context, id string) (*domain.Assessment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Assessment), args.Error(1)
}

func (m *MockAssessmentRepository) Update(ctx context.Context, a *domain.Assessment) error {
	return m.Called(ctx, a).Error(0)
}

func (m *MockAssessmentRepository) List(ctx context.Context, filter domain.AssessmentFilter) ([]*domain.Assessment, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Assessment), args.Error(1)
}

func (m *MockAssessmentRepository) SaveCalculation(ctx context.Context, r *domain.RiskCalculationResult) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockAssessmentRepository) ListCalculations(ctx context.Context, id string) ([]*domain.RiskCalculationResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RiskCalculationResult), args.Error(1)
}

func (m *MockAssessmentRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAssessmentRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockAssessmentRepository) Close() error {
	return nil
}

// MockHistoryStore is a mock implementation of domain.HistoryStore
type MockHistoryStore struct {
	mock.Mock
}

func (m *MockHistoryStore) Append(ctx context.Context, e *domain.HistoryEntry) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockHistoryStore) ListByAssessment(ctx context.Context, id string) ([]*domain.HistoryEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.HistoryEntry), args.Error(1)
}

func (m *MockHistoryStore) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockHistoryStore) Close() error {
	return nil
}

// MockAssessmentCache is a mock implementation of domain.AssessmentCache
type MockAssessmentCache struct {
	mock.Mock
}

func (m *MockAssessmentCache) Get(ctx context.Context, id string) (*domain.Assessment, bool) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*domain.Assessment), args.Bool(1)
}

func (m *MockAssessmentCache) Set(ctx context.Context, a *domain.Assessment) {
	m.Called(ctx, a)
}

func (m *MockAssessmentCache) Invalidate(ctx context.Context, id string) {
	m.Called(ctx, id)
}

var serviceNow = time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC)

func newTestService(repo *MockAssessmentRepository, history *MockHistoryStore, opts ...Option) *AssessmentService {
	seq := 0
	opts = append([]Option{
		WithClock(fixedClock(serviceNow)),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	}, opts...)
	return NewAssessmentService(testLogger(), repo, history, opts...)
}

func historyWith(action domain.HistoryAction) interface{} {
	return mock.MatchedBy(func(e *domain.HistoryEntry) bool { return e.Action == action })
}

func TestAssessmentService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid assessment is stored as DRAFT", func(t *testing.T) {
		repo := new(MockAssessmentRepository)
		history := new(MockHistoryStore)
		svc := newTestService(repo, history)

		repo.On("Create", ctx, mock.AnythingOfType("*domain.Assessment")).Return(nil)
		history.On("Append", ctx, historyWith(domain.ActionCreated)).Return(nil)

		a, err := svc.Create(ctx, &domain.AssessmentCreate{
			Del17pTP53:         "negative",
			TranslocationCombo: "negative",
			Del1p32_1q:         "negative",
		}, "nurse-1")
		require.NoError(t, err)

		assert.Equal(t, "id-1", a.ID)
		assert.Equal(t, domain.DRAFT, a.Status)
		assert.Equal(t, serviceNow, a.CreatedAt)

		entry := history.Calls[0].Arguments.Get(1).(*domain.HistoryEntry)
		assert.Equal(t, "id-1", entry.AssessmentID)
		assert.Equal(t, "nurse-1", entry.PerformedBy)
		assert.Equal(t, map[string]interface{}{"created_by": "Unknown"}, entry.Changes)
		repo.AssertExpectations(t)
		history.AssertExpectations(t)
	})

	t.Run("Invalid assessment is rejected without writes", func(t *testing.T) {
		repo := new(MockAssessmentRepository)
		history := new(MockHistoryStore)
		svc := newTestService(repo, history)

		_, err := svc.Create(ctx, &domain.AssessmentCreate{
			Del17pTP53:         "",
			TranslocationCombo: "maybe",
			Del1p32_1q:         "negative",
			B2MValue:           floatPtr(60),
		}, "")

		var verr *domain.ValidationErrors
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, []string{
			"del(17p) and/or TP53 mutation status is required",
			"High-risk translocation status must be 'positive' or 'negative'",
			"β2-microglobulin value must be between 0 and 50 mg/L",
			"Creatinine value is required when β2-microglobulin is provided",
		}, verr.Errors)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})
}

func TestAssessmentService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("Cache hit skips repository", func(t *testing.T) {
		repo := new(MockAssessmentRepository)
		cache := new(MockAssessmentCache)
		svc := newTestService(repo, new(MockHistoryStore), WithCache(cache))

		cached := negativeAssessment()
		cache.On("Get", ctx, "a-1").Return(cached, true)

		got, err := svc.Get(ctx, "a-1")
		require.NoError(t, err)
		assert.Same(t, cached, got)
		repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("Cache miss populates cache", func(t *testing.T) {
		repo := new(MockAssessmentRepository)
		cache := new(MockAssessmentCache)
		svc := newTestService(repo, new(MockHistoryStore), WithCache(cache))

		stored := negativeAssessment()
		cache.On("Get", ctx, "a-1").Return(nil, false)
		repo.On("GetByID", ctx, "a-1").Return(stored, nil)
		cache.On("Set", ctx, stored).Return()

		got, err := svc.Get(ctx, "a-1")
		require.NoError(t, err)
		assert.Equal(t, stored, got)
		cache.AssertExpectations(t)
	})

	t.Run("Not found", func(t *testing.T) {
		repo := new(MockAssessmentRepository)
		svc := newTestService(repo, new(MockHistoryStore))

		repo.On("GetByID", ctx, "missing").Return(nil, fmt.Errorf("assessment missing: %w", domain.ErrNotFound))

		_, err := svc.Get(ctx, "missing")
		assert.True(t, IsNotFound(err))
	})
}

func TestAssessmentService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("Applies fields and records changes", func(t *testing.T) {
		repo := new(MockAssessmentRepository)
		history := new(MockHistoryStore)
		cache := new(MockAssessmentCache)
		svc := newTestService(repo, history, WithCache(cache))

		repo.On("GetByID", ctx, "a-1").Return(negativeAssessment(), nil)
		repo.On("Update", ctx, mock.AnythingOfType("*domain.Assessment")).Return(nil)
		cache.On("Invalidate", ctx, "a-1").Return()
		history.On("Append", ctx, historyWith(domain.ActionUpdated)).Return(nil)

		physician := "Dr. Lee"
		positive := "positive"
		got, err := svc.Update(ctx, "a-1", &domain.AssessmentUpdate{
			Del17pTP53:    &positive,
			PhysicianName: &physician,
		}, "")
		require.NoError(t, err)

		assert.Equal(t, "positive", got.Del17pTP53)
		assert.Equal(t, serviceNow, got.UpdatedAt)

		entry := history.Calls[0].Arguments.Get(1).(*domain.HistoryEntry)
		assert.Equal(t, "Dr. Lee", entry.Changes["updated_by"])
		changes := entry.Changes["changes"].(map[string]interface{})
		assert.Equal(t, "positive", changes["del17p_tp53"])
		assert.Contains(t, changes, "updated_at")
		cache.AssertExpectations(t)
	})

	t.Run("Merged record must stay valid", func(t *testing.T) {
		repo := new(MockAssessmentRepository)
		svc := newTestService(repo, new(MockHistoryStore))

		repo.On("GetByID", ctx, "a-1").Return(negativeAssessment(), nil)

		_, err := svc.Update(ctx, "a-1", &domain.AssessmentUpdate{B2MValue: floatPtr(5.0)}, "")

		var verr *domain.ValidationErrors
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, []string{"Creatinine value is required when β2-microglobulin is provided"}, verr.Errors)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestAssessmentService_Calculate(t *testing.T) {
	ctx := context.Background()

	t.Run("Persists result and appends history", func(t *testing.T) {
		repo := new(MockAssessmentRepository)
		history := new(MockHistoryStore)
		svc := newTestService(repo, history)

		a := negativeAssessment()
		a.B2MValue = floatPtr(6.0)
		a.CreatinineValue = floatPtr(0.8)

		repo.On("GetByID", ctx, "a-1").Return(a, nil)
		repo.On("SaveCalculation", ctx, mock.AnythingOfType("*domain.RiskCalculationResult")).Return(nil)
		history.On("Append", ctx, historyWith(domain.ActionCalculated)).Return(nil)

		result, err := svc.Calculate(ctx, "a-1", "")
		require.NoError(t, err)

		assert.Equal(t, "id-1", result.ID)
		assert.Equal(t, "a-1", result.AssessmentID)
		assert.Equal(t, domain.HIGH_RISK, result.RiskResult)
		assert.Equal(t, 1, result.TotalRiskFactors)
		assert.Equal(t, serviceNow, result.CalculatedAt)

		entry := history.Calls[0].Arguments.Get(1).(*domain.HistoryEntry)
		assert.Equal(t, map[string]interface{}{
			"risk_result":        "HIGH_RISK",
			"total_risk_factors": 1,
		}, entry.Changes)
	})

	t.Run("Computation error surfaces without writes", func(t *testing.T) {
		repo := new(MockAssessmentRepository)
		history := new(MockHistoryStore)
		svc := newTestService(repo, history)

		a := negativeAssessment()
		a.B2MValue = floatPtr(math.Inf(1))
		a.CreatinineValue = floatPtr(0.8)
		repo.On("GetByID", ctx, "a-1").Return(a, nil)

		_, err := svc.Calculate(ctx, "a-1", "")

		var cerr *domain.ComputationError
		require.True(t, errors.As(err, &cerr))
		repo.AssertNotCalled(t, "SaveCalculation", mock.Anything, mock.Anything)
		history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("Missing assessment", func(t *testing.T) {
		repo := new(MockAssessmentRepository)
		svc := newTestService(repo, new(MockHistoryStore))
		repo.On("GetByID", ctx, "missing").Return(nil, domain.ErrNotFound)

		_, err := svc.Calculate(ctx, "missing", "")
		assert.True(t, IsNotFound(err))
	})
}

func TestAssessmentService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("Applies default limit", func(t *testing.T) {
		repo := new(MockAssessmentRepository)
		svc := newTestService(repo, new(MockHistoryStore))

		expected := domain.AssessmentFilter{PhysicianName: "smith", Limit: domain.DefaultListLimit}
		repo.On("List", ctx, expected).Return([]*domain.Assessment{negativeAssessment()}, nil)

		got, err := svc.List(ctx, domain.AssessmentFilter{PhysicianName: "smith"})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("Rejects bad paging and filters", func(t *testing.T) {
		svc := newTestService(new(MockAssessmentRepository), new(MockHistoryStore))

		for _, f := range []domain.AssessmentFilter{
			{Skip: -1},
			{Limit: 1001},
			{RiskResult: "LOW"},
			{Status: "ARCHIVED"},
		} {
			_, err := svc.List(ctx, f)
			var verr *domain.ValidationErrors
			assert.True(t, errors.As(err, &verr), "filter %+v", f)
		}
	})
}

func TestAssessmentService_Delete(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAssessmentRepository)
	history := new(MockHistoryStore)
	svc := newTestService(repo, history)

	a := negativeAssessment()
	a.PatientName = "Jane Smith"
	repo.On("GetByID", ctx, "a-1").Return(a, nil)
	repo.On("Delete", ctx, "a-1").Return(nil)
	history.On("Append", ctx, historyWith(domain.ActionDeleted)).Return(nil)

	require.NoError(t, svc.Delete(ctx, "a-1", "admin"))

	entry := history.Calls[0].Arguments.Get(1).(*domain.HistoryEntry)
	assert.Equal(t, map[string]interface{}{"patient_name": "Jane Smith"}, entry.Changes)
	assert.Equal(t, "admin", entry.PerformedBy)
}

func TestAssessmentService_History(t *testing.T) {
	ctx := context.Background()

	t.Run("History of a deleted assessment is still returned", func(t *testing.T) {
		repo := new(MockAssessmentRepository)
		history := new(MockHistoryStore)
		svc := newTestService(repo, history)

		entries := []*domain.HistoryEntry{
			{ID: "h-2", AssessmentID: "a-1", Action: domain.ActionDeleted},
			{ID: "h-1", AssessmentID: "a-1", Action: domain.ActionCreated},
		}
		history.On("ListByAssessment", ctx, "a-1").Return(entries, nil)

		got, err := svc.History(ctx, "a-1")
		require.NoError(t, err)
		assert.Equal(t, entries, got)
		repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("Unknown id is not found", func(t *testing.T) {
		repo := new(MockAssessmentRepository)
		history := new(MockHistoryStore)
		svc := newTestService(repo, history)

		history.On("ListByAssessment", ctx, "nope").Return([]*domain.HistoryEntry{}, nil)
		repo.On("GetByID", ctx, "nope").Return(nil, domain.ErrNotFound)

		_, err := svc.History(ctx, "nope")
		assert.True(t, IsNotFound(err))
	})
}

func TestAssessmentService_HistoryFailureIsReported(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAssessmentRepository)
	history := new(MockHistoryStore)
	svc := newTestService(repo, history)

	repo.On("GetByID", ctx, "a-1").Return(negativeAssessment(), nil)
	repo.On("Delete", ctx, "a-1").Return(nil)
	history.On("Append", ctx, mock.Anything).Return(errors.New("disk full"))

	err := svc.Delete(ctx, "a-1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
