package runtime_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/habiliai/agentmesh/agent"
	"github.com/habiliai/agentmesh/entity"
	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/internal/db"
	"github.com/habiliai/agentmesh/internal/mytesting"
	"github.com/habiliai/agentmesh/jsonrpc"
	"github.com/habiliai/agentmesh/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	ybbus "github.com/ybbus/jsonrpc/v3"
)

type ServerTestSuite struct {
	mytesting.Suite

	card   entity.AgentCard
	http   *httptest.Server
	client runtime.A2AClient
}

func (s *ServerTestSuite) SetupTest() {
	s.Suite.SetupTest()

	card, err := entity.NewAgentCard("Echo Agent", "127.0.0.1", 10099,
		entity.WithDescription("echoes"),
		entity.WithSkills(entity.AgentSkill{ID: "echo", Name: "Echo"}),
	)
	s.Require().NoError(err)
	s.card = card

	server, err := runtime.NewServer(
		runtime.WithCard(card),
		runtime.WithAgent(agent.Echo),
		runtime.WithStatusMessage("Echoing..."),
		runtime.WithLogger(s.Logger),
	)
	s.Require().NoError(err)

	s.http = httptest.NewServer(server.Handler())
	s.client = runtime.NewA2AClient(s.http.URL, s.http.Client())
}

func (s *ServerTestSuite) TearDownTest() {
	s.http.Close()
	s.Suite.TearDownTest()
}

func TestServer(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) TestDiscoveryDocument() {
	resp, err := s.http.Client().Get(s.http.URL + entity.WellKnownAgentPath)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
	var doc map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&doc))
	s.Equal("Echo Agent", doc["name"])
	s.Equal("http://127.0.0.1:10099/", doc["url"])
	s.Equal(map[string]any{
		"streaming":              false,
		"pushNotifications":      false,
		"stateTransitionHistory": false,
	}, doc["capabilities"])
}

func (s *ServerTestSuite) TestHealth() {
	resp, err := s.http.Client().Get(s.http.URL + "/health")
	s.Require().NoError(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Equal("OK", string(body))
}

func (s *ServerTestSuite) TestSendMessageRoundTrip() {
	res, err := s.client.SendMessage(s, &runtime.MessageSendParams{
		Message: entity.NewTextMessage(entity.RoleUser, "ping"),
	})
	s.Require().NoError(err)
	s.Require().NotNil(res.Task)
	s.Nil(res.Message)

	task := res.Task
	s.Equal(entity.TaskStateCompleted, task.Status.State)
	text, ok := task.ArtifactText()
	s.True(ok)
	s.Equal("ping", text)

	stored, err := s.client.GetTask(s, &runtime.TaskQueryParams{ID: task.ID})
	s.Require().NoError(err)
	s.Equal(task.ID, stored.ID)
	s.Equal(entity.TaskStateCompleted, stored.Status.State)

	one := 1
	trimmed, err := s.client.GetTask(s, &runtime.TaskQueryParams{ID: task.ID, HistoryLength: &one})
	s.Require().NoError(err)
	s.Len(trimmed.History, 1)
}

func (s *ServerTestSuite) TestSendMessageToFinishedTaskIsRejected() {
	res, err := s.client.SendMessage(s, &runtime.MessageSendParams{
		Message: entity.NewTextMessage(entity.RoleUser, "first"),
	})
	s.Require().NoError(err)

	msg := entity.NewTextMessage(entity.RoleUser, "second")
	msg.TaskID = res.Task.ID
	_, err = s.client.SendMessage(s, &runtime.MessageSendParams{Message: msg})
	s.requireRPCCode(err, -32602)
}

func (s *ServerTestSuite) TestSendMessageWithoutParts() {
	_, err := s.client.SendMessage(s, &runtime.MessageSendParams{
		Message: entity.Message{Kind: entity.KindMessage, Role: entity.RoleUser, MessageID: "m1"},
	})
	s.requireRPCCode(err, -32602)
}

func (s *ServerTestSuite) TestGetUnknownTask() {
	_, err := s.client.GetTask(s, &runtime.TaskQueryParams{ID: "missing"})
	s.requireRPCCode(err, int(jsonrpc.ErrCodeTaskNotFound))
}

func (s *ServerTestSuite) TestCancelTaskIsNotCancelable() {
	res, err := s.client.SendMessage(s, &runtime.MessageSendParams{
		Message: entity.NewTextMessage(entity.RoleUser, "ping"),
	})
	s.Require().NoError(err)

	_, err = s.client.CancelTask(s, &runtime.TaskIDParams{ID: res.Task.ID})
	s.requireRPCCode(err, int(jsonrpc.ErrCodeTaskNotCancelable))

	stored, err := s.client.GetTask(s, &runtime.TaskQueryParams{ID: res.Task.ID})
	s.Require().NoError(err)
	s.Equal(entity.TaskStateCompleted, stored.Status.State)
}

func (s *ServerTestSuite) TestMetricsCountTasks() {
	_, err := s.client.SendMessage(s, &runtime.MessageSendParams{
		Message: entity.NewTextMessage(entity.RoleUser, "ping"),
	})
	s.Require().NoError(err)

	resp, err := s.http.Client().Get(s.http.URL + "/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Contains(string(body), `agentmesh_tasks_total{agent="Echo Agent",state="completed"} 1`)
}

func (s *ServerTestSuite) requireRPCCode(err error, code int) {
	s.T().Helper()
	s.Require().Error(err)

	var rpcErr *ybbus.RPCError
	s.Require().True(errors.As(err, &rpcErr), "expected a JSON-RPC error, got %v", err)
	s.Equal(code, rpcErr.Code)
}

func TestNewServerValidates(t *testing.T) {
	card, err := entity.NewAgentCard("A", "127.0.0.1", 10001)
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string][]runtime.ServerOption{
		"no card":  {runtime.WithAgent(agent.Echo)},
		"no agent": {runtime.WithCard(card)},
		"bad port": {runtime.WithCard(entity.AgentCard{Name: "A", Port: 70000}), runtime.WithAgent(agent.Echo)},
		"no name":  {runtime.WithCard(entity.AgentCard{Port: 10001}), runtime.WithAgent(agent.Echo)},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := runtime.NewServer(opts...)
			if !errors.Is(err, errors.ErrInvalidConfig) {
				t.Fatalf("expected invalid config, got %v", err)
			}
		})
	}
}

func TestNewServerRejectsDuplicateMetrics(t *testing.T) {
	card, err := entity.NewAgentCard("A", "127.0.0.1", 10001)
	if err != nil {
		t.Fatal(err)
	}
	reg := prometheus.NewRegistry()

	_, err = runtime.NewServer(runtime.WithCard(card), runtime.WithAgent(agent.Echo), runtime.WithMetricsRegisterer(reg))
	if err != nil {
		t.Fatal(err)
	}
	_, err = runtime.NewServer(runtime.WithCard(card), runtime.WithAgent(agent.Echo), runtime.WithMetricsRegisterer(reg))
	if !errors.Is(err, errors.ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestListenAndServe(t *testing.T) {
	port, err := mytesting.FreePort()
	if err != nil {
		t.Fatal(err)
	}
	card, err := entity.NewAgentCard("Listener", "127.0.0.1", port)
	if err != nil {
		t.Fatal(err)
	}
	server, err := runtime.NewServer(runtime.WithCard(card), runtime.WithAgent(agent.Echo))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe(ctx)
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became reachable: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	// a second server on the same port fails to bind
	again, err := runtime.NewServer(runtime.WithCard(card), runtime.WithAgent(agent.Echo))
	if err != nil {
		t.Fatal(err)
	}
	if err := again.ListenAndServe(context.Background()); err == nil {
		t.Fatal("expected bind failure")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestGormTaskStore(t *testing.T) {
	ctx := context.Background()
	gormDB, err := db.OpenDB(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.CloseDB(gormDB)
	if err := db.AutoMigrate(ctx, gormDB); err != nil {
		t.Fatal(err)
	}

	store := runtime.NewGormTaskStore(gormDB, "echo")
	other := runtime.NewGormTaskStore(gormDB, "other")

	task := entity.NewSubmittedTask(entity.NewTextMessage(entity.RoleUser, "hi"))
	if err := store.Save(ctx, task); err != nil {
		t.Fatal(err)
	}
	task.Status.State = entity.TaskStateCompleted
	task.Artifacts = append(task.Artifacts, entity.NewTextArtifact("response", "hello"))
	if err := store.Save(ctx, task); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status.State != entity.TaskStateCompleted {
		t.Fatalf("unexpected state %s", got.Status.State)
	}
	if text, _ := got.ArtifactText(); text != "hello" {
		t.Fatalf("unexpected artifact %q", text)
	}

	if _, err := other.Get(ctx, task.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected not found for another agent, got %v", err)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryTaskStoreCopies(t *testing.T) {
	ctx := context.Background()
	store := runtime.NewMemoryTaskStore()

	task := entity.NewSubmittedTask(entity.NewTextMessage(entity.RoleUser, "hi"))
	if err := store.Save(ctx, task); err != nil {
		t.Fatal(err)
	}
	task.Status.State = entity.TaskStateFailed

	got, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status.State != entity.TaskStateSubmitted {
		t.Fatalf("store shares memory with the caller: %s", got.Status.State)
	}
}

func TestServeReturnsWhenListenerFails(t *testing.T) {
	card, err := entity.NewAgentCard("Broken", "127.0.0.1", 10002)
	if err != nil {
		t.Fatal(err)
	}
	server, err := runtime.NewServer(runtime.WithCard(card), runtime.WithAgent(agent.Echo))
	if err != nil {
		t.Fatal(err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	_ = listener.Close()

	// ctx is never canceled, so only a listener failure can end Serve
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(context.Background(), listener)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected the listener failure to be reported")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after the listener failed")
	}
}
