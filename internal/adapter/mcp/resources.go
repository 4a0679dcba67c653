package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"agentcorp://status",
			"Company Status",
			mcplib.WithResourceDescription("Aggregate company snapshot"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleStatusResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			"agentcorp://costs/summary",
			"Cost Summary",
			mcplib.WithResourceDescription("Aggregate LLM spend across all agents"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleCostResource,
	)
}

func (s *Server) handleStatusResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Status == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"status reader not configured"}`,
			},
		}, nil
	}
	data, err := json.Marshal(s.deps.Status.Status())
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleCostResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Tracker == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"cost tracker not configured"}`,
			},
		}, nil
	}
	data, err := json.Marshal(s.deps.Tracker.Summary())
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
