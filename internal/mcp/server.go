// Package mcp exposes the risk calculator as Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/imwg-risk-calculator/internal/domain"
	"github.com/imwg-risk-calculator/internal/service"
)

// AssessmentReader is the part of the assessment service the tools read from.
type AssessmentReader interface {
	List(ctx context.Context, filter domain.AssessmentFilter) ([]*domain.Assessment, error)
	History(ctx context.Context, id string) ([]*domain.HistoryEntry, error)
}

// Server is the IMWG risk calculator MCP server.
type Server struct {
	mcpServer  *mcp.Server
	reader     AssessmentReader
	calculator *service.Calculator
	clock      domain.Clock
	logger     *logrus.Logger
	closers    []io.Closer
}

// ServerInfo contains MCP server metadata
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// DefaultServerInfo identifies the server when no metadata is configured.
var DefaultServerInfo = ServerInfo{
	Name:    "imwg-risk-calculator",
	Version: "v1.0.0",
}

// NewServer creates a new MCP server instance and registers its tools
func NewServer(info ServerInfo, reader AssessmentReader, logger *logrus.Logger) (*Server, error) {
	if reader == nil {
		return nil, errors.New("assessment reader is required")
	}
	if info.Name == "" {
		info = DefaultServerInfo
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    info.Name,
		Version: info.Version,
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		reader:    reader,
		clock:     time.Now,
		logger:    logger,
	}
	s.calculator = service.NewCalculator(logger, func() time.Time { return s.clock() })
	s.registerTools()

	return s, nil
}

// registerTools registers every calculator tool with the MCP SDK.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolCalculateRisk,
		Description: "Calculate the IMWG cytogenetic risk classification (HIGH_RISK or STANDARD_RISK) for multiple myeloma from FISH findings and β2-microglobulin/creatinine values. The assessment is not stored.",
	}, s.handleCalculateRisk)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolValidateAssessment,
		Description: "Check IMWG assessment inputs and report every constraint violation without calculating risk.",
	}, s.handleValidateAssessment)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolCalculateRISS,
		Description: "Calculate the Revised International Staging System (R-ISS) stage from β2-microglobulin, albumin, LDH status and FISH risk.",
	}, s.handleCalculateRISS)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolAssessmentHistory,
		Description: "Return the audit trail of a stored assessment, newest first.",
	}, s.handleAssessmentHistory)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolListAssessments,
		Description: "List stored assessments, newest first, filtered by patient, physician, risk result or status.",
	}, s.handleListAssessments)

	s.logger.WithField("tool_count", len(ToolNames)).Info("Registered MCP tools")
}

// Start serves MCP requests on stdin/stdout until ctx is cancelled or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting IMWG Risk Calculator MCP server (stdio)")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close releases the stores opened for the server.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
