package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/search"
	"github.com/WRI-Indonesia/nbs-llm-sub000/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "nbs-retrieval"

// Searcher is the part of search.Engine the server needs.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.SearchOptions) (*search.SearchResponse, error)
	Rewrite(ctx context.Context, query string) *search.RewrittenQuery
}

// Server bridges MCP clients with the retrieval engine.
type Server struct {
	mcp    *mcp.Server
	engine Searcher
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name: ToolSearch,
		Description: "Search project, policy and report chunks about nature-based solutions. " +
			"Accepts questions in Indonesian, Malay, Vietnamese, Thai, Khmer, Lao, Burmese or English. " +
			"Blends semantic similarity with keyword matches; pass entity to stay within one project.",
	},
	{
		Name: ToolRewrite,
		Description: "Show how a query is normalized before retrieval: detected language, " +
			"split sub-questions, the refined query and its stems.",
	},
}

// NewServer creates a new MCP server.
func NewServer(engine Searcher) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}

	s := &Server{
		engine: engine,
		logger: slog.Default().With("component", "mcp"),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: ServerName, Version: version.Version},
		nil,
	)
	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name and renders its result as markdown.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case ToolSearch:
		in := SearchInput{}
		in.Query, _ = args["query"].(string)
		in.Mode, _ = args["mode"].(string)
		in.Entity, _ = args["entity"].(string)
		if l, ok := args["limit"].(float64); ok {
			in.Limit = int(l)
		}
		if a, ok := args["alpha"].(float64); ok {
			in.Alpha = &a
		}
		if m, ok := args["min_similarity"].(float64); ok {
			in.MinSimilarity = m
		}
		out, err := s.search(ctx, in)
		if err != nil {
			return "", err
		}
		return FormatSearchResults(out), nil
	case ToolRewrite:
		query, _ := args["query"].(string)
		out, err := s.rewrite(ctx, RewriteInput{Query: query})
		if err != nil {
			return "", err
		}
		return FormatRewrite(out), nil
	default:
		return "", NewMethodNotFoundError(name)
	}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolSearch, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolRewrite, Description: tools[1].Description}, s.mcpRewriteHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	out, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) mcpRewriteHandler(ctx context.Context, _ *mcp.CallToolRequest, input RewriteInput) (
	*mcp.CallToolResult,
	RewriteOutput,
	error,
) {
	out, err := s.rewrite(ctx, input)
	if err != nil {
		return nil, RewriteOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) search(ctx context.Context, in SearchInput) (SearchOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return SearchOutput{}, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}

	start := time.Now()
	requestID := generateRequestID()
	opts := search.SearchOptions{
		Mode:          search.Mode(strings.ToLower(in.Mode)),
		TopK:          clampLimit(in.Limit, search.DefaultTopK, 1, search.MaxTopK),
		Alpha:         in.Alpha,
		MinSimilarity: in.MinSimilarity,
		EntityKey:     in.Entity,
	}

	s.logger.Info("search_started",
		slog.String("request_id", requestID),
		slog.String("query", in.Query),
		slog.Int("limit", opts.TopK))

	resp, err := s.engine.Search(ctx, in.Query, opts)
	if err != nil {
		s.logger.Error("search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return SearchOutput{}, MapError(err)
	}

	s.logger.Info("search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", resp.Count()))

	return ToSearchOutput(resp), nil
}

func (s *Server) rewrite(ctx context.Context, in RewriteInput) (RewriteOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return RewriteOutput{}, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	return ToRewriteOutput(s.engine.Rewrite(ctx, in.Query)), nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "", "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// clampLimit applies def to non-positive values and bounds the rest to [lo, hi].
func clampLimit(v, def, lo, hi int) int {
	if v <= 0 {
		return def
	}
	return max(lo, min(v, hi))
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
