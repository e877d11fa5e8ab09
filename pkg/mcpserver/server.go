// Package mcpserver exposes the conversion pipeline to MCP clients.
//
// Three tools are registered. discover_library returns the walker output for
// a module, convert_library returns the full conversion report and
// analyze_library returns the per-group categories, grouping suggestions and
// per-method descriptions. Each replies with a single JSON text content block. A module that cannot be resolved is
// reported as a tool error, not a protocol error.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wilhg/toolspec/pkg/convert"
	"github.com/wilhg/toolspec/pkg/logging"
)

const subsystem = "mcpserver"

// Server wraps an mcp.Server bound to one Converter.
type Server struct {
	conv    *convert.Converter
	base    convert.Config
	version string
	srv     *mcp.Server
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the implementation version announced to clients.
func WithVersion(v string) Option { return func(s *Server) { s.version = v } }

// DiscoverInput is the discover_library argument object.
type DiscoverInput struct {
	Module         string `json:"module" jsonschema:"module identifier: a Go import path or a catalogue module name"`
	IncludePrivate bool   `json:"include_private,omitempty" jsonschema:"also enumerate private names"`
}

// ConvertInput is the convert_library argument object.
type ConvertInput struct {
	Module         string `json:"module" jsonschema:"module identifier: a Go import path or a catalogue module name"`
	IncludePrivate bool   `json:"include_private,omitempty" jsonschema:"also classify private methods"`
	Filter         string `json:"filter,omitempty" jsonschema:"case-insensitive regular expression; only matching method names are classified"`
}

// AnalyzeInput is the analyze_library argument object.
type AnalyzeInput = ConvertInput

// New builds a Server. base supplies the settings not exposed as tool
// arguments (model, retries, backoff).
func New(conv *convert.Converter, base convert.Config, opts ...Option) *Server {
	s := &Server{conv: conv, base: base, version: "dev"}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = mcp.NewServer(&mcp.Implementation{Name: "toolspec", Version: s.version}, nil)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "discover_library",
		Description: "List the classes, methods and functions a library owns, with normalized signatures.",
	}, s.discover)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "convert_library",
		Description: "Classify a library's methods into MCP tools and resources and return the conversion report.",
	}, s.convert)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "analyze_library",
		Description: "Categorize a library's methods, suggest tool groupings and describe each method and its parameters.",
	}, s.analyze)
	return s
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server { return s.srv }

// Run serves on t until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	logging.Info(subsystem, "serving MCP tools discover_library, convert_library, analyze_library")
	return s.srv.Run(ctx, t)
}

func (s *Server) discover(ctx context.Context, _ *mcp.CallToolRequest, in DiscoverInput) (*mcp.CallToolResult, any, error) {
	disc, err := s.conv.Discover(ctx, in.Module, in.IncludePrivate)
	if err != nil {
		logging.Warn(subsystem, err, "discover_library %q", in.Module)
		return nil, nil, err
	}
	return textResult(disc)
}

func (s *Server) config(in ConvertInput) convert.Config {
	cfg := s.base
	cfg.Module = in.Module
	cfg.IncludePrivate = in.IncludePrivate
	cfg.Filter = in.Filter
	return cfg
}

func (s *Server) convert(ctx context.Context, _ *mcp.CallToolRequest, in ConvertInput) (*mcp.CallToolResult, any, error) {
	rep, err := s.conv.Convert(ctx, s.config(in))
	if err != nil {
		logging.Warn(subsystem, err, "convert_library %q", in.Module)
		return nil, nil, err
	}
	return textResult(rep)
}

func (s *Server) analyze(ctx context.Context, _ *mcp.CallToolRequest, in AnalyzeInput) (*mcp.CallToolResult, any, error) {
	a, err := s.conv.Analyze(ctx, s.config(in))
	if err != nil {
		logging.Warn(subsystem, err, "analyze_library %q", in.Module)
		return nil, nil, err
	}
	return textResult(a)
}

func textResult(v any) (*mcp.CallToolResult, any, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(b)}}}, nil, nil
}
