package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/imwg-risk-calculator/internal/domain"
	"github.com/imwg-risk-calculator/internal/middleware"
	"github.com/imwg-risk-calculator/internal/service"
)

// Error labels of 400 responses.
const (
	labelValidation           = "Validation error"
	labelAssessmentValidation = "Assessment validation failed"
	labelRISSValidation       = "R-ISS validation failed"
)

// performedByHeader names the acting user recorded in the audit trail.
const performedByHeader = "X-Performed-By"

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "IMWG Risk Calculator API",
		"version": APIVersion,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.service.Ping(c.Request.Context()); err != nil {
		s.logger.WithError(err).Warn("Health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     err.Error(),
			"timestamp": s.now().UTC(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": s.now().UTC(),
	})
}

func (s *Server) handleCreateAssessment(c *gin.Context) {
	var req domain.AssessmentCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, labelValidation, []string{err.Error()})
		return
	}

	assessment, err := s.service.Create(c.Request.Context(), &req, c.GetHeader(performedByHeader))
	if err != nil {
		s.respondError(c, err, labelAssessmentValidation)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

func (s *Server) handleGetAssessment(c *gin.Context) {
	assessment, err := s.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err, labelValidation)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

func (s *Server) handleUpdateAssessment(c *gin.Context) {
	var upd domain.AssessmentUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		s.badRequest(c, labelValidation, []string{err.Error()})
		return
	}

	assessment, err := s.service.Update(c.Request.Context(), c.Param("id"), &upd, c.GetHeader(performedByHeader))
	if err != nil {
		s.respondError(c, err, labelValidation)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

func (s *Server) handleListAssessments(c *gin.Context) {
	filter, details := parseFilter(c)
	if len(details) > 0 {
		s.badRequest(c, labelValidation, details)
		return
	}

	assessments, err := s.service.List(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err, labelValidation)
		return
	}
	c.JSON(http.StatusOK, assessments)
}

func (s *Server) handleDeleteAssessment(c *gin.Context) {
	if err := s.service.Delete(c.Request.Context(), c.Param("id"), c.GetHeader(performedByHeader)); err != nil {
		s.respondError(c, err, labelValidation)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Assessment deleted successfully"})
}

func (s *Server) handleCalculateRisk(c *gin.Context) {
	id := c.Param("id")
	result, err := s.service.Calculate(c.Request.Context(), id, c.GetHeader(performedByHeader))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Assessment not found"})
			return
		}
		detail := err.Error()
		var computeErr *domain.ComputationError
		if errors.As(err, &computeErr) && computeErr.Cause != nil {
			detail = computeErr.Cause.Error()
		}
		s.logError(c, err, "Risk calculation request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Error calculating risk: %s", detail)})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListCalculations(c *gin.Context) {
	results, err := s.service.Calculations(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err, labelValidation)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) handleAssessmentHistory(c *gin.Context) {
	entries, err := s.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err, labelValidation)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) handleCalculateRISS(c *gin.Context) {
	var in domain.RISSInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.badRequest(c, labelValidation, []string{err.Error()})
		return
	}

	result, err := service.CalculateRISS(in)
	if err != nil {
		s.respondError(c, err, labelRISSValidation)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleExportHistory(c *gin.Context) {
	c.Header("Content-Type", "application/json; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="assessment-history.json"`)
	c.Status(http.StatusOK)
	if err := s.exporter.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		s.logError(c, err, "History export failed")
	}
}

// parseFilter reads the list query parameters; malformed numbers are reported as details.
func parseFilter(c *gin.Context) (domain.AssessmentFilter, []string) {
	filter := domain.AssessmentFilter{
		PatientID:     c.Query("patient_id"),
		PhysicianName: c.Query("physician_name"),
		RiskResult:    c.Query("risk_result"),
		Status:        c.Query("status"),
	}

	var details []string
	if v, ok := c.GetQuery("skip"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			details = append(details, "skip must be an integer")
		}
		filter.Skip = n
	}
	if v, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			details = append(details, "limit must be an integer")
		} else if n == 0 {
			details = append(details, "limit must be between 1 and 1000")
		}
		filter.Limit = n
	}
	return filter, details
}

// respondError maps service errors onto HTTP responses.
func (s *Server) respondError(c *gin.Context, err error, validationLabel string) {
	var validationErr *domain.ValidationErrors
	switch {
	case errors.As(err, &validationErr):
		s.badRequest(c, validationLabel, validationErr.Errors)
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Assessment not found"})
	default:
		s.logError(c, err, "Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func (s *Server) badRequest(c *gin.Context, label string, details []string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   label,
		"details": details,
	})
}

func (s *Server) logError(c *gin.Context, err error, msg string) {
	_ = c.Error(err)
	s.logger.WithError(err).WithFields(logrus.Fields{
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
		"method":         c.Request.Method,
		"path":           c.FullPath(),
		"assessment_id":  c.Param("id"),
	}).Error(msg)
}
