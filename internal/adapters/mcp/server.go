// Package mcp serves the zoning use cases as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
)

const (
	serverName    = "zoning-feasibility"
	serverVersion = "1.0.0"
)

type Server struct {
	zoning ports.ZoningService
	mcp    *server.MCPServer
}

func NewServer(zoning ports.ZoningService) *Server {
	s := &Server{
		zoning: zoning,
		mcp: server.NewMCPServer(serverName, serverVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	s.mcp.AddTool(mcp.NewTool("zoning_qa",
		mcp.WithDescription("Answer a zoning question about an address from the local zoning code library, with page citations."),
		mcp.WithString("address", mcp.Required(), mcp.Description("Site address")),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question about the zoning rules for the site")),
	), s.handleQA)

	s.mcp.AddTool(mcp.NewTool("zoning_envelope",
		mcp.WithDescription("Derive a conservative building envelope (setbacks, footprint, FAR and height caps) for a rectangular lot."),
		mcp.WithString("address", mcp.Required(), mcp.Description("Site address")),
		mcp.WithNumber("lot_width_ft", mcp.Required(), mcp.Description("Lot width in feet")),
		mcp.WithNumber("lot_depth_ft", mcp.Required(), mcp.Description("Lot depth in feet")),
	), s.handleEnvelope)

	s.mcp.AddTool(mcp.NewTool("zoning_go_no_go",
		mcp.WithDescription("Rate a proposed use at an address as Go, Caution or No-Go with reasons."),
		mcp.WithString("address", mcp.Required(), mcp.Description("Site address")),
		mcp.WithString("proposed_use", mcp.Required(), mcp.Description("Proposed use, for example restaurant")),
		mcp.WithNumber("lot_width_ft", mcp.Description("Lot width in feet")),
		mcp.WithNumber("lot_depth_ft", mcp.Description("Lot depth in feet")),
	), s.handleGoNoGo)

	return s
}

// ServeStdio blocks serving MCP over stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleQA(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address, err := request.RequireString("address")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := s.zoning.Answer(ctx, ports.QARequest{Address: address, Question: question})
	return toolResult("zoning_qa", answer, err)
}

func (s *Server) handleEnvelope(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address, err := request.RequireString("address")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	width, err := request.RequireFloat("lot_width_ft")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	depth, err := request.RequireFloat("lot_depth_ft")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report, err := s.zoning.Envelope(ctx, ports.EnvelopeRequest{Address: address, LotWidthFt: width, LotDepthFt: depth})
	return toolResult("zoning_envelope", report, err)
}

func (s *Server) handleGoNoGo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address, err := request.RequireString("address")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	proposedUse, err := request.RequireString("proposed_use")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := ports.FeasibilityRequest{Address: address, ProposedUse: proposedUse}
	args := request.GetArguments()
	if _, ok := args["lot_width_ft"]; ok {
		width := request.GetFloat("lot_width_ft", 0)
		req.LotWidthFt = &width
	}
	if _, ok := args["lot_depth_ft"]; ok {
		depth := request.GetFloat("lot_depth_ft", 0)
		req.LotDepthFt = &depth
	}

	report, err := s.zoning.GoNoGo(ctx, req)
	return toolResult("zoning_go_no_go", report, err)
}

// toolResult reports use-case failures as tool errors so the calling model
// can read them; only encoding failures are protocol errors.
func toolResult(tool string, payload any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		slog.Warn("mcp_tool_failed", "tool", tool, "error", err)
		message := err.Error()
		if domain.IsKind(err, domain.ErrIndexNotFound) {
			message = "the zoning chunk index is not built yet; run zoningctl build-index first"
		}
		return mcp.NewToolResultError(message), nil
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
