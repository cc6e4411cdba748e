package agenttest

import (
	"context"

	"github.com/habiliai/agentmesh/agent"
	"github.com/stretchr/testify/mock"
)

type AgentMock struct {
	mock.Mock
}

func (m *AgentMock) Run(ctx context.Context, input string, opts ...agent.RunOption) (string, error) {
	args := m.Called(ctx, input, agent.NewRunOptions(opts...))
	return args.String(0), args.Error(1)
}

var (
	_ agent.Agent = (*AgentMock)(nil)
)
