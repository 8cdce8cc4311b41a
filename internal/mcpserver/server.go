// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes saved AI conversations to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/askservice"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/transcript"
)

const formatURI = "marginalia://transcript-format"

// Server wraps the MCP server with conversation tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *askservice.Service
	logger *slog.Logger
}

// New creates a new MCP server with all tools registered.
func New(svc *askservice.Service, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, logger: logger}

	s.mcp = server.NewMCPServer(
		"Marginalia",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List saved AI conversations for a document, most recently active first."),
		mcp.WithString("document_hash", mcp.Required(), mcp.Description("Content hash of the PDF as recorded by the viewer")),
	), s.listSessions)

	s.mcp.AddTool(mcp.NewTool("read_session",
		mcp.WithDescription("Read one saved conversation as a Markdown transcript. "+
			"The layout is described by the "+formatURI+" resource."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Session ID")),
	), s.readSession)

	s.mcp.AddTool(mcp.NewTool("find_session_near",
		mcp.WithDescription("Find the AI highlight nearest to an absolute document point and its latest conversation."),
		mcp.WithString("document_hash", mcp.Required(), mcp.Description("Content hash of the PDF")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Absolute x coordinate")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Absolute y coordinate")),
		mcp.WithNumber("tolerance", mcp.Description("Search margin; defaults to the configured tolerance")),
	), s.findSessionNear)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Transcript Format",
			mcp.WithResourceDescription("Markdown layout of a saved conversation."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hash, err := req.RequireString("document_hash")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sessions, err := s.svc.ListSessions(ctx, hash)
	if err != nil {
		s.logger.Error("mcp: list sessions failed", slog.String("error", err.Error()))
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(sessions) == 0 {
		return mcp.NewToolResultText("no saved conversations"), nil
	}
	out, _ := json.MarshalIndent(sessions, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireFloat("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	conv, err := s.svc.Conversation(ctx, int64(id))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: session %d", int64(id))), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := transcript.Render(conv.Session, conv.Messages)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) findSessionNear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hash, err := req.RequireString("document_hash")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	x, err := req.RequireFloat("x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := req.RequireFloat("y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tol := req.GetFloat("tolerance", 0)

	h, sess, err := s.svc.Lookup(ctx, hash, models.AbsolutePos{X: x, Y: y}, tol)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if h == nil {
		return mcp.NewToolResultText("no AI highlight near that point"), nil
	}
	out, _ := json.MarshalIndent(map[string]any{"highlight": h, "session": sess}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     TranscriptFormat,
		},
	}, nil
}
