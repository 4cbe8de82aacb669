// Package mcpserver exposes the action catalog to an LLM client over the
// Model Context Protocol with two tools: list_actions and execute_action.
package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gonbaum/composite/pkg/dispatcher"
	"github.com/gonbaum/composite/pkg/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	ServerName = "composite-actions"

	ListActionsTool   = "list_actions"
	ExecuteActionTool = "execute_action"
)

// ActionLister returns the enabled actions.
type ActionLister interface {
	ListActions(ctx context.Context) ([]*models.Action, error)
}

// Executor runs an invocation to completion.
type Executor interface {
	Execute(ctx context.Context, req dispatcher.ExecuteRequest) (*models.Result, error)
}

// ParameterSummary is one parameter as shown to the client.
type ParameterSummary struct {
	Name         string               `json:"name"`
	Type         models.ParameterType `json:"type"`
	Description  string               `json:"description"`
	Required     bool                 `json:"required"`
	DefaultValue *string              `json:"default_value"`
}

// ActionSummary is one entry of the list_actions output.
type ActionSummary struct {
	Name        string             `json:"name"`
	DisplayName string             `json:"display_name"`
	Description string             `json:"description"`
	ActionType  models.ActionType  `json:"action_type"`
	Tags        []string           `json:"tags"`
	Parameters  []ParameterSummary `json:"parameters"`
}

// ListActionsInput takes no arguments.
type ListActionsInput struct{}

// ExecuteActionInput is the argument object of execute_action.
type ExecuteActionInput struct {
	Action string `json:"action"           jsonschema:"Action name from list_actions"`
	Params string `json:"params,omitempty" jsonschema:"JSON string of parameters, e.g. {\"city\": \"Tokyo\"}"`
}

type Server struct {
	lister   ActionLister
	executor Executor
	server   *mcp.Server
	logger   *slog.Logger
}

func New(logger *slog.Logger, lister ActionLister, executor Executor, version string) *Server {
	s := &Server{
		lister:   lister,
		executor: executor,
		server:   mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil),
		logger:   logger.With("module", "mcpserver"),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ListActionsTool,
		Description: "List all available actions with descriptions and parameter schemas. Call this first to discover what you can do.",
	}, s.listActions)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ExecuteActionTool,
		Description: "Execute a named action with parameters. Use list_actions first to see available actions and their required parameters.",
	}, s.executeAction)

	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *mcp.Server {
	return s.server
}

// Run serves a single client over transport until it disconnects or ctx is done.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.InfoContext(ctx, "MCP server running", "name", ServerName)

	return s.server.Run(ctx, transport)
}

func (s *Server) listActions(ctx context.Context, _ *mcp.CallToolRequest, _ ListActionsInput) (*mcp.CallToolResult, any, error) {
	actions, err := s.lister.ListActions(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list actions", "error", err)

		return errorResult("Error fetching actions: %v", err), nil, nil
	}

	summaries := make([]ActionSummary, 0, len(actions))
	for _, action := range actions {
		if !action.Enabled {
			continue
		}

		summaries = append(summaries, summarize(action))
	}

	return jsonResult(summaries), nil, nil
}

func (s *Server) executeAction(ctx context.Context, _ *mcp.CallToolRequest, in ExecuteActionInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{}

	if in.Params != "" {
		err := json.Unmarshal([]byte(in.Params), &params)
		if err != nil || params == nil {
			return errorResult("Invalid JSON in params: %s", in.Params), nil, nil
		}
	}

	result, err := s.executor.Execute(ctx, dispatcher.ExecuteRequest{
		Action: in.Action,
		Params: params,
		Source: models.SourceMCP,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Action execution failed", "action", in.Action, "error", err)

		return errorResult("Error executing action: %v", err), nil, nil
	}

	out := jsonResult(result)

	if result.Image != nil {
		data, err := base64.StdEncoding.DecodeString(result.Image.Data)
		if err == nil {
			out.Content = append(out.Content, &mcp.ImageContent{Data: data, MIMEType: result.Image.MimeType})
		}
	}

	return out, nil, nil
}

func summarize(action *models.Action) ActionSummary {
	summary := ActionSummary{
		Name:        action.Name,
		DisplayName: action.Label(),
		Description: action.Description,
		ActionType:  action.Type,
		Tags:        action.Tags,
		Parameters:  make([]ParameterSummary, 0, len(action.Parameters)),
	}

	if summary.ActionType == "" {
		summary.ActionType = models.ActionTypeAPI
	}

	if summary.Tags == nil {
		summary.Tags = []string{}
	}

	for _, p := range action.Parameters {
		paramType := p.Type
		if paramType == "" {
			paramType = models.ParameterTypeString
		}

		summary.Parameters = append(summary.Parameters, ParameterSummary{
			Name:         p.Name,
			Type:         paramType,
			Description:  p.Description,
			Required:     p.Required,
			DefaultValue: p.DefaultValue,
		})
	}

	return summary
}

func jsonResult(v any) *mcp.CallToolResult {
	text, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("failed to encode result: %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
	}
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
