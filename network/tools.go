package network

import (
	"context"
	"encoding/json"

	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/tool"
)

type (
	listRemoteAgentsInput struct{}

	createTaskInput struct {
		AgentURL string `json:"agent_url" jsonschema_description:"Base URL of the remote agent, as listed by list_remote_agents"`
		Message  string `json:"message" jsonschema_description:"Task for the remote agent in natural language"`
	}
)

// Tools exposes the client to an LLM. Both tools answer with text even when
// the remote side fails, so a tool call never aborts the model's turn.
func (c *RemoteAgentClient) Tools() ([]tool.Tool, error) {
	list, err := tool.NewFunc(
		"list_remote_agents",
		"List the available remote agents with their names, descriptions and skills, keyed by URL.",
		func(ctx context.Context, _ listRemoteAgentsInput) (string, error) {
			data, err := json.MarshalIndent(c.ListRemoteAgents(ctx), "", "  ")
			if err != nil {
				return "", errors.Wrapf(err, "failed to encode remote agents")
			}
			return string(data), nil
		},
	)
	if err != nil {
		return nil, err
	}

	create, err := tool.NewFunc(
		"create_task",
		"Send a task to a remote agent and return its text answer.",
		func(ctx context.Context, in createTaskInput) (string, error) {
			return c.CreateTask(ctx, in.AgentURL, in.Message).Text(), nil
		},
	)
	if err != nil {
		return nil, err
	}

	return []tool.Tool{list, create}, nil
}
