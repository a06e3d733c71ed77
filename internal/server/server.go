// Package server connects the tool registry to MCP transports: stdio for
// local agent hosts and streamable HTTP for remote ones.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	mcpgw "github.com/sameelarif/imessage-mcp/internal/mcp"
)

const (
	serverName    = "imessage-mcp"
	serverVersion = "1.0.0"
)

// Server exposes a ToolRegistry over MCP.
type Server struct {
	registry *mcpgw.ToolRegistry
	logger   *slog.Logger
	echo     *echo.Echo
	addr     string
}

func New(log *slog.Logger, registry *mcpgw.ToolRegistry, addr string) *Server {
	if log == nil {
		log = slog.Default()
	}
	if addr == "" {
		addr = ":8236"
	}
	s := &Server{
		registry: registry,
		logger:   log.With(slog.String("component", "server")),
		addr:     addr,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.GET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	handler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return s.buildMCPServer() },
		&sdkmcp.StreamableHTTPOptions{
			Stateless:    true,
			JSONResponse: true,
			Logger:       s.logger,
		},
	)
	mcpRoute := func(c echo.Context) error {
		req := c.Request()
		ensureStreamableAcceptHeader(req)
		handler.ServeHTTP(c.Response().Writer, req)
		return nil
	}
	e.POST("/mcp", mcpRoute)
	e.GET("/mcp", mcpRoute)
	s.echo = e
	return s
}

// RunStdio serves a single MCP session over stdin/stdout and blocks until
// the peer disconnects. Logs must go to stderr in this mode.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")
	session, err := s.buildMCPServer().Connect(ctx, &sdkmcp.StdioTransport{}, nil)
	if err != nil {
		return fmt.Errorf("connect stdio transport: %w", err)
	}
	if err := session.Wait(); err != nil {
		return fmt.Errorf("stdio session: %w", err)
	}
	return nil
}

// RunHTTP serves MCP over streamable HTTP and blocks until the listener
// fails or Shutdown is called.
func (s *Server) RunHTTP() error {
	s.logger.Info("serving MCP over HTTP", slog.String("addr", s.addr))
	if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http listener: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) buildMCPServer() *sdkmcp.Server {
	server := sdkmcp.NewServer(
		&sdkmcp.Implementation{
			Name:    serverName,
			Version: serverVersion,
		},
		&sdkmcp.ServerOptions{
			Capabilities: &sdkmcp.ServerCapabilities{
				Tools: &sdkmcp.ToolCapabilities{
					ListChanged: false,
				},
			},
		},
	)
	server.AddReceivingMiddleware(s.registryMiddleware())
	return server
}

// registryMiddleware routes tools/list and tools/call to the registry,
// leaving every other MCP method to the SDK.
func (s *Server) registryMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			switch strings.TrimSpace(method) {
			case "tools/list":
				return &sdkmcp.ListToolsResult{
					Tools: convertToolsToSDK(s.registry.List()),
				}, nil
			case "tools/call":
				callReq, ok := req.(*sdkmcp.ServerRequest[*sdkmcp.CallToolParamsRaw])
				if !ok || callReq == nil || callReq.Params == nil {
					return nil, fmt.Errorf("tools/call params is required")
				}
				name, arguments, err := decodeCallParams(callReq.Params)
				if err != nil {
					return nil, err
				}
				result, err := s.registry.Call(ctx, name, arguments)
				if err != nil {
					return nil, err
				}
				return convertCallResultToSDK(result)
			default:
				return next(ctx, method, req)
			}
		}
	}
}

func decodeCallParams(params *sdkmcp.CallToolParamsRaw) (string, map[string]any, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return "", nil, fmt.Errorf("tools/call name is required")
	}
	arguments := map[string]any{}
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &arguments); err != nil {
			return "", nil, fmt.Errorf("decode tools/call arguments: %w", err)
		}
	}
	return name, arguments, nil
}

func convertToolsToSDK(items []mcpgw.ToolDescriptor) []*sdkmcp.Tool {
	tools := make([]*sdkmcp.Tool, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		inputSchema := item.InputSchema
		if inputSchema == nil {
			inputSchema = map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			}
		}
		tools = append(tools, &sdkmcp.Tool{
			Name:        name,
			Description: strings.TrimSpace(item.Description),
			InputSchema: inputSchema,
		})
	}
	return tools
}

func convertCallResultToSDK(result map[string]any) (*sdkmcp.CallToolResult, error) {
	if result == nil {
		result = mcpgw.BuildToolSuccessResult("ok", nil)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var out sdkmcp.CallToolResult
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ensureStreamableAcceptHeader widens the Accept header so plain JSON
// clients can talk to the streamable handler.
func ensureStreamableAcceptHeader(req *http.Request) {
	if req == nil {
		return
	}
	acceptValues := req.Header.Values("Accept")
	joined := strings.ToLower(strings.Join(acceptValues, ","))
	hasJSON := strings.Contains(joined, "application/json") || strings.Contains(joined, "application/*") || strings.Contains(joined, "*/*")
	hasStream := strings.Contains(joined, "text/event-stream") || strings.Contains(joined, "text/*") || strings.Contains(joined, "*/*")
	if hasJSON && hasStream {
		return
	}

	parts := make([]string, 0, 3)
	if base := strings.TrimSpace(strings.Join(acceptValues, ",")); base != "" {
		parts = append(parts, base)
	}
	if !hasJSON {
		parts = append(parts, "application/json")
	}
	if !hasStream {
		parts = append(parts, "text/event-stream")
	}
	req.Header.Set("Accept", strings.Join(parts, ", "))
}
