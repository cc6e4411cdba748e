package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/habiliai/agentmesh/agent"
	"github.com/habiliai/agentmesh/engine"
	enginetest "github.com/habiliai/agentmesh/engine/test"
	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/internal/mytesting"
	"github.com/habiliai/agentmesh/tool"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type EngineTestSuite struct {
	mytesting.Suite

	model *enginetest.ModelMock
}

func (s *EngineTestSuite) SetupTest() {
	s.Suite.SetupTest()
	s.model = &enginetest.ModelMock{}
}

func (s *EngineTestSuite) TearDownTest() {
	s.model.AssertExpectations(s.T())
	s.Suite.TearDownTest()
}

func TestEngine(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) TestRunReturnsText() {
	s.model.On("Generate", mock.Anything, mock.MatchedBy(func(req *engine.Request) bool {
		return req.System == "be brief" && len(req.Messages) == 1 && req.Messages[0].Content == "hi"
	})).Return(&engine.Response{Content: "hello"}, nil).Once()

	e := engine.NewEngine("tester", s.model, engine.WithLogger(s.Logger), engine.WithSystemPrompt("be brief"))
	out, err := e.Run(s, "hi")
	s.Require().NoError(err)
	s.Equal("hello", out)
}

func (s *EngineTestSuite) TestRunCallsTools() {
	upper, err := tool.NewFunc("shout", "uppercases", func(ctx context.Context, in struct {
		Text string `json:"text"`
	}) (string, error) {
		return in.Text + "!", nil
	})
	s.Require().NoError(err)

	s.model.On("Generate", mock.Anything, mock.MatchedBy(func(req *engine.Request) bool {
		return len(req.Messages) == 1
	})).Return(&engine.Response{ToolCalls: []engine.ToolCall{
		{ID: "c1", Name: "shout", Arguments: `{"text":"hey"}`},
		{ID: "c2", Name: "missing", Arguments: `{}`},
	}}, nil).Once()
	s.model.On("Generate", mock.Anything, mock.MatchedBy(func(req *engine.Request) bool {
		if len(req.Messages) != 4 {
			return false
		}
		first, second := req.Messages[2], req.Messages[3]
		return first.Role == engine.RoleTool && first.ToolCallID == "c1" && first.Content == "hey!" &&
			second.ToolCallID == "c2" && second.Content != ""
	})).Return(&engine.Response{Content: "done"}, nil).Once()

	e := engine.NewEngine("tester", s.model, engine.WithLogger(s.Logger), engine.WithTools(upper))
	out, err := e.Run(s, "go")
	s.Require().NoError(err)
	s.Equal("done", out)
}

func (s *EngineTestSuite) TestRunStopsAfterMaxTurns() {
	s.model.On("Generate", mock.Anything, mock.Anything).Return(&engine.Response{ToolCalls: []engine.ToolCall{
		{ID: "c", Name: "nothing"},
	}}, nil).Times(2)

	e := engine.NewEngine("tester", s.model, engine.WithLogger(s.Logger), engine.WithMaxTurns(2))
	_, err := e.Run(s, "loop")
	s.Error(err)
}

func (s *EngineTestSuite) TestRunPropagatesModelError() {
	s.model.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited")).Once()

	e := engine.NewEngine("tester", s.model, engine.WithLogger(s.Logger))
	_, err := e.Run(s, "x")
	s.ErrorContains(err, "rate limited")
}

func (s *EngineTestSuite) TestForbiddenToolServer() {
	cmd := filepath.Join(s.T().TempDir(), "server")
	s.Require().NoError(os.WriteFile(cmd, []byte("#!/bin/sh\n"), 0o600))

	e := engine.NewEngine("tester", s.model,
		engine.WithLogger(s.Logger),
		engine.WithToolServers(map[string]tool.MCPServerConfig{"locked": {Command: cmd}}),
	)

	_, err := e.Run(s, "x")
	s.ErrorIs(err, errors.ErrToolServerForbidden)

	s.model.On("Generate", mock.Anything, mock.Anything).Return(&engine.Response{Content: "without tools"}, nil).Once()
	out, err := e.Run(s, "x", agent.WithoutToolServers())
	s.Require().NoError(err)
	s.Equal("without tools", out)
}
