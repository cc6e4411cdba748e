package enginetest

import (
	"context"

	"github.com/habiliai/agentmesh/engine"
	"github.com/stretchr/testify/mock"
)

type ModelMock struct {
	mock.Mock
}

func (m *ModelMock) Generate(ctx context.Context, req *engine.Request) (*engine.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*engine.Response)
	return resp, args.Error(1)
}

var (
	_ engine.Model = (*ModelMock)(nil)
)
