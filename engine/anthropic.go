package engine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/habiliai/agentmesh/errors"
)

const defaultAnthropicMaxTokens = 4096

type AnthropicModel struct {
	client *anthropic.Client
	name   string
}

func NewAnthropicModel(client *anthropic.Client, name string) *AnthropicModel {
	return &AnthropicModel{client: client, name: name}
}

func (m *AnthropicModel) Generate(ctx context.Context, req *Request) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.name),
		Messages:  toAnthropicMessages(req.Messages),
		MaxTokens: defaultAnthropicMaxTokens,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if strings.TrimSpace(req.System) != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	for _, def := range req.Tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        def.Name,
				Description: anthropic.String(def.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type:       "object",
					Properties: def.Parameters["properties"],
				},
			},
		})
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrapf(err, "anthropic message generation failed")
	}

	out := &Response{FinishReason: string(resp.StopReason)}
	var text strings.Builder
	for _, content := range resp.Content {
		switch block := content.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(block.Text)
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			})
		}
	}
	out.Content = text.String()

	return out, nil
}

// toAnthropicMessages folds consecutive tool results into one user turn.
func toAnthropicMessages(messages []Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				input := json.RawMessage(call.Arguments)
				if len(strings.TrimSpace(call.Arguments)) == 0 {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		case RoleTool:
			result := anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false)
			if n := len(out); n > 0 && out[n-1].Role == anthropic.MessageParamRoleUser && isToolResultTurn(out[n-1]) {
				out[n-1].Content = append(out[n-1].Content, result)
				continue
			}
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{result},
			})
		default:
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
			})
		}
	}

	return out
}

func isToolResultTurn(msg anthropic.MessageParam) bool {
	for _, block := range msg.Content {
		if block.OfToolResult == nil {
			return false
		}
	}
	return len(msg.Content) > 0
}
