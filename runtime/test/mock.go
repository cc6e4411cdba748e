package runtimetest

import (
	"context"

	"github.com/habiliai/agentmesh/entity"
	"github.com/habiliai/agentmesh/runtime"
	"github.com/stretchr/testify/mock"
)

type A2AClientMock struct {
	mock.Mock
}

func (m *A2AClientMock) SendMessage(ctx context.Context, params *runtime.MessageSendParams) (*entity.SendMessageResult, error) {
	args := m.Called(ctx, params)
	res, _ := args.Get(0).(*entity.SendMessageResult)
	return res, args.Error(1)
}

func (m *A2AClientMock) GetTask(ctx context.Context, params *runtime.TaskQueryParams) (*entity.Task, error) {
	args := m.Called(ctx, params)
	task, _ := args.Get(0).(*entity.Task)
	return task, args.Error(1)
}

func (m *A2AClientMock) CancelTask(ctx context.Context, params *runtime.TaskIDParams) (*entity.Task, error) {
	args := m.Called(ctx, params)
	task, _ := args.Get(0).(*entity.Task)
	return task, args.Error(1)
}

var (
	_ runtime.A2AClient = (*A2AClientMock)(nil)
)
