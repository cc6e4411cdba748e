package agentmesh_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/habiliai/agentmesh"
	"github.com/habiliai/agentmesh/config"
	"github.com/habiliai/agentmesh/engine"
	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/internal/db"
	"github.com/habiliai/agentmesh/internal/mytesting"
	"github.com/habiliai/agentmesh/network"
	"github.com/stretchr/testify/suite"
)

type echoModel struct{}

func (echoModel) Generate(_ context.Context, req *engine.Request) (*engine.Response, error) {
	return &engine.Response{Content: req.Messages[len(req.Messages)-1].Content}, nil
}

// orchestratorModel forwards the user input to target with create_task and
// wraps whatever comes back.
type orchestratorModel struct {
	target string
}

func (m orchestratorModel) Generate(_ context.Context, req *engine.Request) (*engine.Response, error) {
	last := req.Messages[len(req.Messages)-1]
	if last.Role == engine.RoleTool {
		return &engine.Response{Content: "orchestrated: " + last.Content}, nil
	}

	args, err := json.Marshal(map[string]string{"agent_url": m.target, "message": last.Content})
	if err != nil {
		return nil, err
	}
	return &engine.Response{ToolCalls: []engine.ToolCall{{ID: "call-1", Name: "create_task", Arguments: string(args)}}}, nil
}

type MeshTestSuite struct {
	mytesting.Suite

	echo, orchestrator config.AgentConfig
}

func (s *MeshTestSuite) SetupTest() {
	s.Suite.SetupTest()

	s.echo = config.AgentConfig{
		Name:          "Echo",
		Model:         "echo",
		Host:          "127.0.0.1",
		Port:          s.FreePort(),
		StatusMessage: "Echoing...",
		ArtifactName:  "response",
	}
	s.orchestrator = config.AgentConfig{
		Name:          "Orchestrator",
		Model:         "orchestrator",
		Host:          "127.0.0.1",
		Port:          s.FreePort(),
		StatusMessage: "Orchestrating agents...",
		Orchestrator:  true,
		System:        "You coordinate {{ .Name }}'s helpers.",
	}
}

func TestMesh(t *testing.T) {
	suite.Run(t, new(MeshTestSuite))
}

func (s *MeshTestSuite) meshConfig() *config.MeshConfig {
	conf := config.DefaultMeshConfig()
	conf.ReadyMaxWaitMillis = 5_000
	conf.ReadyPollIntervalMillis = 100
	return conf
}

func (s *MeshTestSuite) models(ac *config.AgentConfig) (engine.Model, error) {
	switch ac.Model {
	case "echo":
		return echoModel{}, nil
	case "orchestrator":
		return orchestratorModel{target: fmt.Sprintf("127.0.0.1:%d", s.echo.Port)}, nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "unknown model %s", ac.Model)
	}
}

func (s *MeshTestSuite) TestOrchestratorDispatchesToSpecialist() {
	gormDB, err := db.OpenDB(filepath.Join(s.T().TempDir(), "tasks.db"))
	s.Require().NoError(err)
	defer db.CloseDB(gormDB)
	s.Require().NoError(db.AutoMigrate(s, gormDB))

	mesh, err := agentmesh.New(
		agentmesh.WithLogger(s.Logger),
		agentmesh.WithMeshConfig(s.meshConfig()),
		agentmesh.WithAgents(s.echo, s.orchestrator),
		agentmesh.WithModelFactory(s.models),
		agentmesh.WithDB(gormDB),
	)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"Echo", "Orchestrator"}, mesh.Registry().ListNames())

	ctx, stop := context.WithCancel(s)
	defer func() {
		stop()
		mesh.Wait()
	}()

	readiness := mesh.Start(ctx)
	s.Require().True(readiness.Ready)

	orchestratorClient, err := mesh.Client("Orchestrator")
	s.Require().NoError(err)
	echoURL := fmt.Sprintf("http://127.0.0.1:%d", s.echo.Port)
	s.Equal([]string{echoURL}, orchestratorClient.RemoteAgentURLs())

	_, err = mesh.Client("Echo")
	s.ErrorIs(err, errors.ErrNotFound)

	caller := network.NewRemoteAgentClient(network.WithClientLogger(s.Logger))
	res := caller.CreateTask(s, fmt.Sprintf("127.0.0.1:%d", s.orchestrator.Port), "ping")
	s.Require().NoError(res.Err)
	s.Equal("orchestrated: ping", res.Text())

	s.Require().Len(mesh.Orchestrators(), 1)
	gateway := httptest.NewServer(agentmesh.NewGatewayHandler(caller, mesh.Orchestrators()[0].URL, s.Logger))
	defer gateway.Close()

	body, err := json.Marshal(map[string]string{"user_input": "pong"})
	s.Require().NoError(err)
	resp, err := http.Post(gateway.URL+"/agent/orchestration/create_task", "application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()

	var out map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	s.Equal("orchestrated: pong", out["message"])
}

func (s *MeshTestSuite) TestNewRejectsInvalidAgents() {
	_, err := agentmesh.New(agentmesh.WithLogger(s.Logger), agentmesh.WithModelFactory(s.models))
	s.ErrorIs(err, errors.ErrInvalidConfig)

	broken := s.echo
	broken.StatusMessage = ""
	_, err = agentmesh.New(agentmesh.WithLogger(s.Logger), agentmesh.WithAgents(broken), agentmesh.WithModelFactory(s.models))
	s.ErrorIs(err, errors.ErrInvalidConfig)

	unknown := s.echo
	unknown.Model = "nope"
	_, err = agentmesh.New(agentmesh.WithLogger(s.Logger), agentmesh.WithAgents(unknown), agentmesh.WithModelFactory(s.models))
	s.ErrorIs(err, errors.ErrInvalidConfig)
}

func (s *MeshTestSuite) TestGatewayRejectsEmptyInput() {
	gateway := httptest.NewServer(agentmesh.NewGatewayHandler(network.NewRemoteAgentClient(), "127.0.0.1:1", s.Logger))
	defer gateway.Close()

	resp, err := http.Post(gateway.URL+"/agent/orchestration/create_task", "application/json", bytes.NewReader([]byte(`{}`)))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}
