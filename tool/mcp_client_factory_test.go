package tool_test

import (
	"context"

	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/tool"
)

// TestMCPTransportDetection tests the auto-detection of transport types
func (s *TestSuite) TestMCPTransportDetection() {
	tests := []struct {
		name     string
		config   tool.MCPServerConfig
		expected tool.MCPTransportType
	}{
		{
			name: "stdio with command",
			config: tool.MCPServerConfig{
				Command: "/usr/bin/mcp-server",
			},
			expected: tool.MCPTransportStdio,
		},
		{
			name: "sse with URL",
			config: tool.MCPServerConfig{
				URL: "https://mcp.example.com",
			},
			expected: tool.MCPTransportSSE,
		},
		{
			name: "explicit oauth-sse",
			config: tool.MCPServerConfig{
				URL:       "https://mcp.example.com",
				Transport: tool.MCPTransportOAuthSSE,
			},
			expected: tool.MCPTransportOAuthSSE,
		},
		{
			name:     "empty config defaults to stdio",
			config:   tool.MCPServerConfig{},
			expected: tool.MCPTransportStdio,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			got := tt.config.GetTransport()
			s.Equal(tt.expected, got)
		})
	}
}

// TestMCPClientFactoryValidation tests validation in the MCP client factory
func (s *TestSuite) TestMCPClientFactoryValidation() {
	factory := tool.NewMCPClientFactory()

	tests := []struct {
		name     string
		config   tool.MCPServerConfig
		errorMsg string
	}{
		{
			name:     "stdio without command",
			config:   tool.MCPServerConfig{Transport: tool.MCPTransportStdio},
			errorMsg: "command is required for stdio transport",
		},
		{
			name:     "sse without URL",
			config:   tool.MCPServerConfig{Transport: tool.MCPTransportSSE},
			errorMsg: "URL is required for sse transport",
		},
		{
			name:     "http without URL",
			config:   tool.MCPServerConfig{Transport: tool.MCPTransportHTTP},
			errorMsg: "URL is required for http transport",
		},
		{
			name: "oauth-sse without oauth config",
			config: tool.MCPServerConfig{
				URL:       "https://mcp.example.com",
				Transport: tool.MCPTransportOAuthSSE,
			},
			errorMsg: "OAuth configuration is required for oauth-sse transport",
		},
		{
			name:     "unknown transport",
			config:   tool.MCPServerConfig{Transport: "carrier-pigeon", URL: "https://mcp.example.com"},
			errorMsg: `unsupported transport type "carrier-pigeon"`,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := factory.CreateClient(context.Background(), "gmail", tt.config)

			s.Require().Error(err)
			s.ErrorIs(err, errors.ErrInvalidConfig)
			s.Contains(err.Error(), "tool server gmail")
			s.Contains(err.Error(), tt.errorMsg)
		})
	}
}

func (s *TestSuite) TestMCPClientFactoryBuildsSSEClient() {
	factory := tool.NewMCPClientFactory()

	c, err := factory.CreateClient(context.Background(), "calendar", tool.MCPServerConfig{
		URL:     "https://mcp.example.com",
		Headers: map[string]string{"Authorization": "Bearer token"},
	})
	s.Require().NoError(err)
	s.NotNil(c)
}

func (s *TestSuite) TestMCPClientFactoryStopsOnCanceledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tool.NewMCPClientFactory().CreateClient(ctx, "todoist", tool.MCPServerConfig{Command: "/bin/echo"})
	s.ErrorIs(err, context.Canceled)
	s.Contains(err.Error(), "tool server todoist")
}
