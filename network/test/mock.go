package networktest

import (
	"context"

	"github.com/habiliai/agentmesh/network"
	"github.com/stretchr/testify/mock"
)

// RunnableMock stands in for an agent server.
type RunnableMock struct {
	mock.Mock
}

func (m *RunnableMock) ListenAndServe(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var (
	_ network.Runnable = (*RunnableMock)(nil)
)
