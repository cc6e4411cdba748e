package engine

import (
	"context"
	"encoding/json"

	"github.com/habiliai/agentmesh/errors"
	"github.com/sashabaranov/go-openai"
)

// ChatCompletionClient is the part of *openai.Client the model needs.
type ChatCompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type OpenAIModel struct {
	client ChatCompletionClient
	name   string
}

func NewOpenAIModel(client ChatCompletionClient, name string) *OpenAIModel {
	return &OpenAIModel{client: client, name: name}
}

func (m *OpenAIModel) Generate(ctx context.Context, req *Request) (*Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, toOpenAIMessage(msg))
	}

	tools := make([]openai.Tool, 0, len(req.Tools))
	for _, def := range req.Tools {
		params, err := json.Marshal(def.Parameters)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal parameters of %s", def.Name)
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  json.RawMessage(params),
			},
		})
	}

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     m.name,
		Messages:  messages,
		Tools:     tools,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "openai chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	out := &Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}
	for _, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	return out, nil
}

func toOpenAIMessage(msg Message) openai.ChatCompletionMessage {
	switch msg.Role {
	case RoleAssistant:
		out := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: msg.Content,
		}
		for _, call := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		return out
	case RoleTool:
		return openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
	default:
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: msg.Content,
		}
	}
}
