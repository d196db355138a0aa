// Package mcpserver exposes one intake session as MCP tools over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/dispatch"
	"github.com/ppiankov/intake/internal/tools"
)

// ErrMissingSurface is returned when no tool surface is provided
var ErrMissingSurface = errors.New("mcp: tool surface is required")

// Server is the MCP server for one intake session
type Server struct {
	surface *tools.Surface
	server  *mcp.Server
	logger  *zap.Logger
}

// NewServer creates a server exposing every catalog operation as a tool
func NewServer(surface *tools.Surface, version string, logger *zap.Logger) (*Server, error) {
	if surface == nil {
		return nil, ErrMissingSurface
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	impl := &mcp.Implementation{
		Name:    "intake",
		Version: version,
	}

	s := &Server{
		surface: surface,
		server:  mcp.NewServer(impl, nil),
		logger:  logger,
	}
	s.registerTools()

	return s, nil
}

// Run serves over stdio until the context is canceled or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MessageOutput is the structured output of every tool
type MessageOutput struct {
	Message string `json:"message"`
}

type NameInput struct {
	Name string `json:"name" jsonschema:"the client's full name"`
}

type AgeInput struct {
	Age string `json:"age" jsonschema:"the client's age as a whole number between 0 and 120"`
}

type MedicaidInput struct {
	HasMedicaid string `json:"has_medicaid" jsonschema:"yes or no"`
}

type DisabilityInput struct {
	Disability string `json:"disability,omitempty" jsonschema:"the type of disability, empty for none"`
}

type HousingInput struct {
	Housing string `json:"housing" jsonschema:"current housing situation, e.g. homeless, at risk, stably housed"`
}

type PresetInput struct {
	ClientKey string `json:"client_key" jsonschema:"pre-built client key, e.g. test_client_1"`
}

type NoInput struct{}

func (s *Server) registerTools() {
	for _, spec := range tools.Catalog() {
		switch spec.Op {
		case tools.OpSetName:
			addTool(s, spec, func(in NameInput) string { return in.Name })
		case tools.OpSetAge:
			addTool(s, spec, func(in AgeInput) string { return in.Age })
		case tools.OpSetMedicaid:
			addTool(s, spec, func(in MedicaidInput) string { return in.HasMedicaid })
		case tools.OpSetDisability:
			addTool(s, spec, func(in DisabilityInput) string { return in.Disability })
		case tools.OpSetHousing:
			addTool(s, spec, func(in HousingInput) string { return in.Housing })
		case tools.OpLoadPreset:
			addTool(s, spec, func(in PresetInput) string { return in.ClientKey })
		default:
			addTool(s, spec, func(NoInput) string { return "" })
		}
	}
}

func addTool[In any](s *Server, spec tools.Spec, arg func(In) string) {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        spec.ToolName(),
		Description: spec.Description,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, MessageOutput, error) {
		return s.invoke(ctx, spec.Op, arg(in))
	})
}

// invoke runs an operation and shapes the reply as a tool result
func (s *Server) invoke(ctx context.Context, op tools.Operation, arg string) (*mcp.CallToolResult, MessageOutput, error) {
	msg, err := s.surface.Invoke(ctx, op, arg)
	if err != nil {
		var genErr *dispatch.ReportGenerationError
		if !errors.As(err, &genErr) {
			return nil, MessageOutput{}, err
		}
		s.logger.Error("tool failed", zap.String("op", string(op)), zap.Error(err))
		text := fmt.Sprintf("%s\n%v", msg, err)
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, MessageOutput{Message: msg}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}, MessageOutput{Message: msg}, nil
}
