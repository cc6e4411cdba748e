package tool

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/habiliai/agentmesh/errors"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/samber/lo"
)

const defaultConnectTimeout = 30 * time.Second

// Session holds the tool server connections opened for a single agent turn.
type Session struct {
	logger  *slog.Logger
	clients map[string]*mcpclient.Client
	tools   []Tool
}

type forbiddenError struct {
	server string
	cause  error
}

func (e *forbiddenError) Error() string {
	return "tool server " + e.server + " is not permitted here: " + e.cause.Error()
}

func (e *forbiddenError) Unwrap() error { return e.cause }

func (e *forbiddenError) Is(target error) bool {
	return target == errors.ErrToolServerForbidden
}

// Open connects every configured server and lists its tools. On failure all
// connections opened so far are closed before returning.
func (f *MCPClientFactory) Open(ctx context.Context, logger *slog.Logger, servers map[string]MCPServerConfig) (*Session, error) {
	s := &Session{
		logger:  logger,
		clients: make(map[string]*mcpclient.Client, len(servers)),
	}

	names := lo.Keys(servers)
	sort.Strings(names)
	for _, name := range names {
		if err := s.connect(ctx, f, name, servers[name].Expanded()); err != nil {
			if closeErr := s.Close(); closeErr != nil {
				logger.Warn("failed to close tool servers", "err", closeErr)
			}
			return nil, classifyStartError(name, err)
		}
	}

	return s, nil
}

func (s *Session) connect(ctx context.Context, f *MCPClientFactory, name string, config MCPServerConfig) error {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := f.CreateClient(ctx, name, config)
	if err != nil {
		return errors.Wrapf(err, "failed to create MCP client %s", name)
	}
	s.clients[name] = c

	if config.GetTransport() == MCPTransportStdio {
		if stderr, ok := mcpclient.GetStderr(c); ok {
			go s.drainStderr(name, stderr)
		}
	} else if err := c.Start(ctx); err != nil {
		return errors.Wrapf(err, "failed to start MCP client %s", name)
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "agentmesh",
		Version: "0.1.0",
	}
	if _, err := c.Initialize(ctx, initRequest); err != nil {
		return errors.Wrapf(err, "failed to initialize MCP client %s", name)
	}

	listToolsResult, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return errors.Wrapf(err, "failed to list tools of %s", name)
	}
	for _, t := range listToolsResult.Tools {
		wrapped, err := newMCPTool(name, c, t)
		if err != nil {
			return err
		}
		s.tools = append(s.tools, wrapped)
	}
	s.logger.Debug("tool server connected", "server", name, "tools", len(listToolsResult.Tools))

	return nil
}

func (s *Session) drainStderr(name string, stderr io.Reader) {
	rd := bufio.NewReader(stderr)
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			if err == io.EOF || strings.Contains(err.Error(), "already closed") {
				return
			}
			s.logger.Error("failed to copy stderr", "err", err, "serverName", name)
			return
		}
		s.logger.Warn("[MCP] "+strings.TrimSpace(line), "serverName", name)
	}
}

func (s *Session) Tools() []Tool {
	if s == nil {
		return nil
	}
	return s.tools
}

// Close releases every connection of the session.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}

	var errs []error
	for name, c := range s.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "failed to close MCP client %s", name))
		}
	}
	s.clients = nil
	s.tools = nil

	return errors.Join(errs...)
}

func classifyStartError(server string, err error) error {
	if errors.Is(err, os.ErrPermission) {
		return &forbiddenError{server: server, cause: err}
	}
	return err
}
