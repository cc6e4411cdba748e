package tool

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/internal/stringutils"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

type mcpTool struct {
	server string
	client mcpclient.MCPClient
	def    Definition
}

func newMCPTool(server string, client mcpclient.MCPClient, t mcp.Tool) (*mcpTool, error) {
	params, err := inputSchema(t)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to convert input schema of %s/%s", server, t.Name)
	}

	return &mcpTool{
		server: server,
		client: client,
		def: Definition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		},
	}, nil
}

func (t *mcpTool) Definition() Definition {
	return t.def
}

func (t *mcpTool) Call(ctx context.Context, arguments string) (string, error) {
	args := map[string]any{}
	if strings.TrimSpace(arguments) != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", errors.Wrapf(errors.ErrInvalidParams, "tool %s: %v", t.def.Name, err)
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = t.def.Name
	req.Params.Arguments = args

	res, err := t.client.CallTool(ctx, req)
	if err != nil {
		return "", errors.Wrapf(err, "failed to call tool %s on %s", t.def.Name, t.server)
	}

	text := toText(res.Content)
	if res.IsError {
		return "", errors.Errorf("tool %s failed: %s", t.def.Name, text)
	}

	return text, nil
}

// inputSchema reads the schema through the tool's own JSON encoding so raw
// schemas and structured ones come out the same.
func inputSchema(t mcp.Tool) (map[string]any, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}

	var doc struct {
		InputSchema map[string]any `json:"inputSchema"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.InputSchema == nil {
		doc.InputSchema = map[string]any{"type": "object"}
	}
	if _, ok := doc.InputSchema["properties"]; !ok {
		doc.InputSchema["properties"] = map[string]any{}
	}

	return doc.InputSchema, nil
}

func toText(contents []mcp.Content) string {
	var sb strings.Builder
	for _, c := range contents {
		switch t := c.(type) {
		case mcp.TextContent:
			sb.WriteString(t.Text)
		case *mcp.TextContent:
			sb.WriteString(t.Text)
		}
	}

	return strings.TrimSpace(stringutils.Clean(sb.String()))
}
