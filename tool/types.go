package tool

import (
	"os"
	"time"
)

// MCPTransportType represents the transport type for MCP servers
type MCPTransportType string

const (
	MCPTransportStdio    MCPTransportType = "stdio"
	MCPTransportSSE      MCPTransportType = "sse"
	MCPTransportOAuthSSE MCPTransportType = "oauth-sse"
	MCPTransportHTTP     MCPTransportType = "http"
)

// MCPServerConfig represents the configuration for an MCP server
type MCPServerConfig struct {
	// Transport type (stdio, sse, oauth-sse, http)
	Transport MCPTransportType `json:"transport,omitempty" yaml:"transport,omitempty"`

	// For stdio transport
	Command string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// For SSE/HTTP transports
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// For OAuth
	OAuthConfig *OAuthConfig `json:"oauth,omitempty" yaml:"oauth,omitempty"`

	// Bounds connecting and listing tools; zero means 30s.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// OAuthConfig contains OAuth authentication configuration
type OAuthConfig struct {
	ClientID     string   `json:"clientId,omitempty" yaml:"clientId,omitempty"`
	ClientSecret string   `json:"clientSecret,omitempty" yaml:"clientSecret,omitempty"`
	RedirectURL  string   `json:"redirectUrl,omitempty" yaml:"redirectUrl,omitempty"`
	Scopes       []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	// AuthServerMetadataURL is the URL to the OAuth server metadata
	// If empty, the client will attempt to discover it from the base URL
	AuthServerMetadataURL string `json:"authServerMetadataUrl,omitempty" yaml:"authServerMetadataUrl,omitempty"`
	PKCEEnabled           bool   `json:"pkceEnabled,omitempty" yaml:"pkceEnabled,omitempty"`
}

// GetTransport returns the transport type, defaulting to stdio if not specified
func (c *MCPServerConfig) GetTransport() MCPTransportType {
	if c.Transport == "" {
		if c.URL != "" {
			return MCPTransportSSE
		}
		return MCPTransportStdio
	}
	return c.Transport
}

// Expanded returns a copy with ${VAR} references resolved from the process env.
func (c MCPServerConfig) Expanded() MCPServerConfig {
	out := c
	out.Command = os.ExpandEnv(c.Command)
	out.URL = os.ExpandEnv(c.URL)
	out.Args = make([]string, len(c.Args))
	for i, arg := range c.Args {
		out.Args[i] = os.ExpandEnv(arg)
	}
	out.Env = expandMap(c.Env)
	out.Headers = expandMap(c.Headers)

	return out
}

func expandMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = os.ExpandEnv(v)
	}
	return out
}
