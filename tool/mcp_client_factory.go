package tool

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/habiliai/agentmesh/errors"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/samber/lo"
)

// MCPClientFactory builds unstarted MCP clients for the tool servers of an agent.
// Stdio clients are the exception: building one spawns the server process.
type MCPClientFactory struct {
	httpClient *http.Client
}

func NewMCPClientFactory() *MCPClientFactory {
	return &MCPClientFactory{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (f *MCPClientFactory) CreateClient(ctx context.Context, serverID string, config MCPServerConfig) (*mcpclient.Client, error) {
	kind := config.GetTransport()
	if err := validateServer(serverID, kind, config); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(err, "tool server %s", serverID)
	}

	var (
		c   *mcpclient.Client
		err error
	)
	switch kind {
	case MCPTransportStdio:
		c, err = mcpclient.NewStdioMCPClient(config.Command, stdioEnv(config.Env), config.Args...)
	case MCPTransportSSE:
		c, err = mcpclient.NewSSEMCPClient(config.URL, f.sseOptions(config)...)
	case MCPTransportOAuthSSE:
		c, err = mcpclient.NewOAuthSSEClient(config.URL, oauthConfig(config.OAuthConfig), f.sseOptions(config)...)
	case MCPTransportHTTP:
		c, err = mcpclient.NewStreamableHttpClient(config.URL, transport.WithHTTPHeaders(config.Headers))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "tool server %s: failed to create %s client", serverID, kind)
	}

	return c, nil
}

func validateServer(serverID string, kind MCPTransportType, config MCPServerConfig) error {
	switch kind {
	case MCPTransportStdio:
		if config.Command == "" {
			return errors.Wrapf(errors.ErrInvalidConfig, "tool server %s: command is required for stdio transport", serverID)
		}
	case MCPTransportSSE, MCPTransportHTTP:
		if config.URL == "" {
			return errors.Wrapf(errors.ErrInvalidConfig, "tool server %s: URL is required for %s transport", serverID, kind)
		}
	case MCPTransportOAuthSSE:
		if config.URL == "" {
			return errors.Wrapf(errors.ErrInvalidConfig, "tool server %s: URL is required for %s transport", serverID, kind)
		}
		if config.OAuthConfig == nil {
			return errors.Wrapf(errors.ErrInvalidConfig, "tool server %s: OAuth configuration is required for %s transport", serverID, kind)
		}
	default:
		return errors.Wrapf(errors.ErrInvalidConfig, "tool server %s: unsupported transport type %q", serverID, kind)
	}
	return nil
}

// stdioEnv renders env as KEY=VALUE pairs in key order.
func stdioEnv(env map[string]string) []string {
	pairs := lo.MapToSlice(env, func(k, v string) string { return k + "=" + v })
	sort.Strings(pairs)
	return pairs
}

func (f *MCPClientFactory) sseOptions(config MCPServerConfig) []transport.ClientOption {
	opts := []transport.ClientOption{transport.WithHTTPClient(f.httpClient)}
	if len(config.Headers) > 0 {
		opts = append(opts, transport.WithHeaders(config.Headers))
	}
	return opts
}

func oauthConfig(c *OAuthConfig) transport.OAuthConfig {
	return transport.OAuthConfig{
		ClientID:              c.ClientID,
		ClientSecret:          c.ClientSecret,
		RedirectURI:           c.RedirectURL,
		Scopes:                c.Scopes,
		AuthServerMetadataURL: c.AuthServerMetadataURL,
		PKCEEnabled:           c.PKCEEnabled,
		TokenStore:            transport.NewMemoryTokenStore(),
	}
}
