package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/imwg-risk-calculator/internal/domain"
	"github.com/imwg-risk-calculator/internal/service"
)

// Tool names
const (
	toolCalculateRisk      = "calculate_imwg_risk"
	toolValidateAssessment = "validate_assessment"
	toolCalculateRISS      = "calculate_riss_stage"
	toolAssessmentHistory  = "get_assessment_history"
	toolListAssessments    = "list_assessments"
)

// ToolNames lists the registered tools in registration order.
var ToolNames = []string{
	toolCalculateRisk,
	toolValidateAssessment,
	toolCalculateRISS,
	toolAssessmentHistory,
	toolListAssessments,
}

// AssessmentParams defines the assessment inputs accepted by calculate_imwg_risk and
// validate_assessment. Every field is optional at the protocol level so that missing
// values are reported by the validator.
type AssessmentParams struct {
	PatientID          string   `json:"patient_id,omitempty" jsonschema:"patient identifier"`
	PatientName        string   `json:"patient_name,omitempty" jsonschema:"patient name"`
	Del17pTP53         string   `json:"del17p_tp53,omitempty" jsonschema:"del(17p) and/or TP53 mutation: positive or negative"`
	TranslocationCombo string   `json:"translocation_combo,omitempty" jsonschema:"t(4;14), t(14;16) or t(14;20) together with 1q+ or del(1p32): positive or negative"`
	Del1p32_1q         string   `json:"del1p32_1q,omitempty" jsonschema:"monoallelic del(1p32) with 1q+, or biallelic del(1p32): positive or negative"`
	B2MValue           *float64 `json:"b2m_value,omitempty" jsonschema:"β2-microglobulin in mg/L"`
	CreatinineValue    *float64 `json:"creatinine_value,omitempty" jsonschema:"serum creatinine in mg/dL"`
	ClinicalNotes      string   `json:"clinical_notes,omitempty" jsonschema:"free-text clinical notes"`
	PhysicianName      string   `json:"physician_name,omitempty" jsonschema:"responsible physician"`
	Institution        string   `json:"institution,omitempty" jsonschema:"institution"`
}

func (p AssessmentParams) assessment(now time.Time) *domain.Assessment {
	req := domain.AssessmentCreate{
		PatientID:          p.PatientID,
		PatientName:        p.PatientName,
		Del17pTP53:         p.Del17pTP53,
		TranslocationCombo: p.TranslocationCombo,
		Del1p32_1q:         p.Del1p32_1q,
		B2MValue:           p.B2MValue,
		CreatinineValue:    p.CreatinineValue,
		ClinicalNotes:      p.ClinicalNotes,
		PhysicianName:      p.PhysicianName,
		Institution:        p.Institution,
	}
	return req.NewAssessment("", now.UTC())
}

// ValidateAssessmentResult defines the result structure for validate_assessment
type ValidateAssessmentResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

// RISSParams defines parameters for calculate_riss_stage
type RISSParams struct {
	PatientName  string   `json:"patient_name,omitempty" jsonschema:"patient name"`
	B2MValue     *float64 `json:"b2m_value,omitempty" jsonschema:"β2-microglobulin in mg/L"`
	AlbuminValue *float64 `json:"albumin_value,omitempty" jsonschema:"serum albumin in g/dL"`
	LDHStatus    string   `json:"ldh_status,omitempty" jsonschema:"LDH: normal or elevated"`
	FISHRisk     string   `json:"fish_risk,omitempty" jsonschema:"FISH cytogenetic risk: standard or high"`
}

// HistoryParams defines parameters for get_assessment_history
type HistoryParams struct {
	AssessmentID string `json:"assessment_id,omitempty" jsonschema:"assessment identifier"`
}

// ListParams defines parameters for list_assessments
type ListParams struct {
	PatientID     string `json:"patient_id,omitempty" jsonschema:"exact patient identifier"`
	PhysicianName string `json:"physician_name,omitempty" jsonschema:"case-insensitive substring of the physician name"`
	RiskResult    string `json:"risk_result,omitempty" jsonschema:"HIGH_RISK or STANDARD_RISK"`
	Status        string `json:"status,omitempty" jsonschema:"DRAFT or COMPLETED"`
	Skip          int    `json:"skip,omitempty" jsonschema:"number of records to skip"`
	Limit         int    `json:"limit,omitempty" jsonschema:"page size, 1 to 1000 (default 100)"`
}

func (s *Server) handleCalculateRisk(ctx context.Context, req *mcp.CallToolRequest, params AssessmentParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", toolCalculateRisk).Info("Tool invoked")

	a := params.assessment(s.clock())
	if ok, errs := service.ValidateAssessment(a); !ok {
		return s.errorResult(domain.NewMCPError(domain.ErrValidation, "Assessment validation failed", errs...)), nil, nil
	}

	result, err := s.calculator.Calculate(a)
	if err != nil {
		s.logger.WithError(err).WithField("tool", toolCalculateRisk).Error("Risk calculation failed")
		return s.errorResult(domain.NewMCPError(domain.ErrCalculation, "Error calculating risk", errorDetail(err))), nil, nil
	}

	s.logger.WithFields(logrus.Fields{
		"tool":               toolCalculateRisk,
		"risk_result":        result.RiskResult,
		"total_risk_factors": result.TotalRiskFactors,
	}).Info("Risk calculated")

	summary := fmt.Sprintf("IMWG risk: %s (%d risk factor(s))", result.RiskResult, result.TotalRiskFactors)
	return s.jsonResult(summary, result), nil, nil
}

func (s *Server) handleValidateAssessment(ctx context.Context, req *mcp.CallToolRequest, params AssessmentParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", toolValidateAssessment).Info("Tool invoked")

	ok, errs := service.ValidateAssessment(params.assessment(s.clock()))
	if errs == nil {
		errs = []string{}
	}

	summary := "Assessment is valid"
	if !ok {
		summary = fmt.Sprintf("Assessment has %d validation error(s)", len(errs))
	}
	return s.jsonResult(summary, ValidateAssessmentResult{IsValid: ok, Errors: errs}), nil, nil
}

func (s *Server) handleCalculateRISS(ctx context.Context, req *mcp.CallToolRequest, params RISSParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", toolCalculateRISS).Info("Tool invoked")

	result, err := service.CalculateRISS(domain.RISSInput{
		PatientName:  params.PatientName,
		B2MValue:     params.B2MValue,
		AlbuminValue: params.AlbuminValue,
		LDHStatus:    params.LDHStatus,
		FISHRisk:     params.FISHRisk,
	})
	if err != nil {
		var verr *domain.ValidationErrors
		if errors.As(err, &verr) {
			return s.errorResult(domain.NewMCPError(domain.ErrValidation, "R-ISS validation failed", verr.Errors...)), nil, nil
		}
		return s.errorResult(domain.NewMCPError(domain.ErrCalculation, "Error calculating R-ISS stage", err.Error())), nil, nil
	}

	summary := fmt.Sprintf("R-ISS Stage %s (%s), ISS Stage %s", result.RISSStage, result.StageName, result.ISSStage)
	return s.jsonResult(summary, result), nil, nil
}

func (s *Server) handleAssessmentHistory(ctx context.Context, req *mcp.CallToolRequest, params HistoryParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{
		"tool":          toolAssessmentHistory,
		"assessment_id": params.AssessmentID,
	}).Info("Tool invoked")

	if params.AssessmentID == "" {
		return s.errorResult(domain.NewMCPError(domain.ErrInvalidInput, "Missing required parameter", "assessment_id is required")), nil, nil
	}

	entries, err := s.reader.History(ctx, params.AssessmentID)
	if err != nil {
		return s.errorResult(s.storeError(err, params.AssessmentID)), nil, nil
	}

	summary := fmt.Sprintf("%d history entr(ies) for assessment %s", len(entries), params.AssessmentID)
	return s.jsonResult(summary, entries), nil, nil
}

func (s *Server) handleListAssessments(ctx context.Context, req *mcp.CallToolRequest, params ListParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", toolListAssessments).Info("Tool invoked")

	assessments, err := s.reader.List(ctx, domain.AssessmentFilter{
		PatientID:     params.PatientID,
		PhysicianName: params.PhysicianName,
		RiskResult:    params.RiskResult,
		Status:        params.Status,
		Skip:          params.Skip,
		Limit:         params.Limit,
	})
	if err != nil {
		return s.errorResult(s.storeError(err, "")), nil, nil
	}

	summary := fmt.Sprintf("%d assessment(s)", len(assessments))
	return s.jsonResult(summary, assessments), nil, nil
}

// storeError maps a service failure onto the MCP error it is reported as.
func (s *Server) storeError(err error, assessmentID string) *domain.MCPError {
	var verr *domain.ValidationErrors
	switch {
	case errors.As(err, &verr):
		return domain.NewMCPError(domain.ErrValidation, "Validation error", verr.Errors...)
	case errors.Is(err, domain.ErrNotFound):
		return domain.NewMCPError(domain.ErrNotFoundCode, "Assessment not found", assessmentID)
	default:
		s.logger.WithError(err).WithField("assessment_id", assessmentID).Error("Store request failed")
		return domain.NewMCPError(domain.ErrDatabaseError, "Internal server error")
	}
}

// jsonResult renders a one-line summary followed by the JSON payload.
func (s *Server) jsonResult(summary string, payload interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return s.errorResult(domain.NewMCPError(domain.ErrInternalServer, "Failed to encode result", err.Error()))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary},
			&mcp.TextContent{Text: string(data)},
		},
	}
}

// errorResult creates an error result for MCP tools
func (s *Server) errorResult(mcpErr *domain.MCPError) *mcp.CallToolResult {
	data, err := json.Marshal(mcpErr)
	if err != nil {
		data = []byte(mcpErr.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Error: %s", mcpErr.Message)},
			&mcp.TextContent{Text: string(data)},
		},
		IsError: true,
	}
}

func errorDetail(err error) string {
	var computeErr *domain.ComputationError
	if errors.As(err, &computeErr) && computeErr.Cause != nil {
		return computeErr.Cause.Error()
	}
	return err.Error()
}
