package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/helioform/coachd/internal/coach"
	"github.com/helioform/coachd/internal/macros"
	"github.com/helioform/coachd/internal/memory"
	"github.com/helioform/coachd/internal/snapshot"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Coach     *coach.Orchestrator
	Memory    *memory.Store
	Snapshots *snapshot.Builder
}

// NewMCPServer creates an MCP server exposing the coach's tools so
// other local agents can drive a turn or inspect memory.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"coachd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("coachd: on-device AI nutrition and training coach with durable memory."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("coach_chat",
			mcp.WithDescription("Send one message through the full coaching turn and get the structured response."),
			mcp.WithString("message", mcp.Description("The user's message"), mcp.Required()),
			mcp.WithString("persona", mcp.Description("Optional persona id override")),
		),
		mcpChat(deps),
	)

	s.AddTool(
		mcp.NewTool("search_memory",
			mcp.WithDescription("Search past coaching sessions by relevance and return matched message groups."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of session groups (default 3)")),
		),
		mcpSearchMemory(deps),
	)

	s.AddTool(
		mcp.NewTool("get_active_plans",
			mcp.WithDescription("List the plans the coach has created that are still active."),
		),
		mcpActivePlans(deps),
	)

	s.AddTool(
		mcp.NewTool("preview_macro_adjustment",
			mcp.WithDescription("Compute today's recommended macro adjustment from the live snapshot without running a chat turn."),
		),
		mcpMacroPreview(deps),
	)

	s.AddTool(
		mcp.NewTool("summarize_day",
			mcp.WithDescription("Summarize one day's conversation and store the summary for future recall."),
			mcp.WithString("date", mcp.Description("Session date (YYYY-MM-DD)"), mcp.Required()),
		),
		mcpSummarizeDay(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"coach://context",
			"Current User Context",
			mcp.WithResourceDescription("The current per-turn user snapshot as the coach would see it"),
			mcp.WithMIMEType("text/plain"),
		),
		mcpResourceContext(deps),
	)

	return s
}

func mcpChat(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}
		personaID := req.GetString("persona", "")

		resp := deps.Coach.Chat(ctx, message, personaID)
		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchMemory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		limit := req.GetInt("limit", 3)
		if limit <= 0 {
			limit = 3
		}
		if limit > 20 {
			limit = 20
		}

		matches := deps.Memory.Search(query, limit)
		if len(matches) == 0 {
			return mcpText("[]"), nil
		}
		b, err := json.Marshal(matches)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpActivePlans(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		plans, err := deps.Memory.ActivePlans()
		if err != nil {
			return mcpError(fmt.Sprintf("loading plans failed: %v", err)), nil
		}
		if len(plans) == 0 {
			return mcpText("[]"), nil
		}
		b, err := json.Marshal(plans)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal plans: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpMacroPreview(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		uc := deps.Snapshots.Build(ctx)
		adj := macros.Compute(uc)
		if adj == nil {
			return mcpText("no adjustment recommended today"), nil
		}
		b, err := json.Marshal(adj)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal adjustment: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSummarizeDay(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		date, err := req.RequireString("date")
		if err != nil {
			return mcpError("date is required"), nil
		}
		summary, err := deps.Coach.SummarizeDay(ctx, date)
		if err != nil {
			return mcpError(fmt.Sprintf("summarization failed: %v", err)), nil
		}
		return mcpText(summary), nil
	}
}

func mcpResourceContext(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		uc := deps.Snapshots.Build(ctx)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "text/plain",
				Text:     snapshot.FormatForPrompt(uc),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
