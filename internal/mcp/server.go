package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/curia-rag/curia/internal/index"
	"github.com/curia-rag/curia/pkg/version"
)

// ServerName is reported to clients during initialization.
const ServerName = "curia"

// Service is the part of the index manager the server exposes.
type Service interface {
	Retrieve(ctx context.Context, text string) ([]index.Result, error)
	Query(ctx context.Context, text string) (*index.Answer, error)
	Status(ctx context.Context) (*index.Status, error)
}

// Server is the MCP server for curia.
type Server struct {
	mcp     *mcp.Server
	service Service
	logger  *slog.Logger

	// busy reports a running background rebuild (nil when not watching).
	busy func() bool

	// documents backs the file:// resources (nil until RegisterDocuments).
	documents *Library

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "retrieve",
		Description: "Find the passages of the indexed documents most similar to a query. Returns each passage with its source document, position and similarity score.",
	},
	{
		Name:        "query",
		Description: "Answer a question from the indexed documents. Retrieves the most relevant passages and asks the configured language model to answer from them only.",
	},
	{
		Name:        "index_status",
		Description: "Report the size of the index, the configured models and whether a rebuild is in progress.",
	},
}

// NewServer creates a new MCP server backed by svc.
func NewServer(svc Service, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("index service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		service: svc,
		logger:  logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()

	return s, nil
}

// SetBusy installs the function index_status uses to report a background rebuild.
func (s *Server) SetBusy(fn func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = fn
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

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.handleRetrieve)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.handleQuery)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.handleIndexStatus)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

func (s *Server) handleRetrieve(ctx context.Context, _ *mcp.CallToolRequest, input RetrieveInput) (
	*mcp.CallToolResult,
	RetrieveOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, RetrieveOutput{}, NewInvalidParamsError("query parameter is required")
	}

	done := s.track("retrieve")
	results, err := s.service.Retrieve(ctx, input.Query)
	done(err)
	if err != nil {
		return nil, RetrieveOutput{}, MapError(err)
	}

	return textResult(FormatRetrieveResults(input.Query, results)), RetrieveOutput{Results: toPassages(results)}, nil
}

func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (
	*mcp.CallToolResult,
	QueryOutput,
	error,
) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, QueryOutput{}, NewInvalidParamsError("question parameter is required")
	}

	done := s.track("query")
	ans, err := s.service.Query(ctx, input.Question)
	done(err)
	if err != nil {
		return nil, QueryOutput{}, MapError(err)
	}

	out := QueryOutput{Answer: ans.Text, Sources: toPassages(ans.Sources)}
	return textResult(FormatAnswer(ans)), out, nil
}

func (s *Server) handleIndexStatus(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	st, err := s.service.Status(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}

	s.mu.RLock()
	busy := s.busy
	s.mu.RUnlock()

	out := toStatusOutput(st, busy != nil && busy())
	return textResult(FormatStatus(out)), out, nil
}

// track logs the start of a tool call and returns the function that logs its end.
func (s *Server) track(tool string) func(error) {
	requestID := generateRequestID()
	start := time.Now()
	s.logger.Info("tool_started", slog.String("tool", tool), slog.String("request_id", requestID))

	return func(err error) {
		attrs := []any{
			slog.String("tool", tool),
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			s.logger.Warn("tool_failed", append(attrs, slog.String("error", err.Error()))...)
			return
		}
		s.logger.Info("tool_completed", attrs...)
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// Serve runs the server on the given transport until ctx is canceled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_started", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_failed", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
