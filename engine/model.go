package engine

import (
	"context"

	"github.com/habiliai/agentmesh/tool"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type (
	Message struct {
		Role       Role
		Content    string
		ToolCalls  []ToolCall
		ToolCallID string
	}

	ToolCall struct {
		ID        string
		Name      string
		Arguments string
	}

	Request struct {
		System    string
		Messages  []Message
		Tools     []tool.Definition
		MaxTokens int
	}

	Response struct {
		Content      string
		ToolCalls    []ToolCall
		FinishReason string
	}

	// Model produces one assistant reply for a conversation.
	Model interface {
		Generate(ctx context.Context, req *Request) (*Response, error)
	}
)
