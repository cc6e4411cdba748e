package jsonrpc_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/internal/mytesting"
	"github.com/habiliai/agentmesh/jsonrpc"
	"github.com/stretchr/testify/suite"
	ybbus "github.com/ybbus/jsonrpc/v3"
)

type (
	EchoArgs struct {
		Text string `json:"text"`
	}
	EchoReply struct {
		Text string `json:"text"`
	}

	echoService struct{}
)

func (echoService) Echo(_ *http.Request, args *EchoArgs, reply *EchoReply) error {
	reply.Text = args.Text
	return nil
}

func (echoService) Cancel(_ *http.Request, _ *EchoArgs, _ *EchoReply) error {
	return errors.Wrapf(errors.ErrTaskNotCancelable, "nope")
}

func (echoService) Lookup(_ *http.Request, _ *EchoArgs, _ *EchoReply) error {
	return errors.Wrapf(errors.ErrNotFound, "task x")
}

func (echoService) Explode(_ *http.Request, _ *EchoArgs, _ *EchoReply) error {
	panic("boom")
}

type Suite struct {
	mytesting.Suite

	server *httptest.Server
	client ybbus.RPCClient
}

func (s *Suite) SetupTest() {
	s.Suite.SetupTest()

	handler, err := jsonrpc.NewHandler(s.Logger,
		jsonrpc.WithService(echoService{}, "Echo"),
		jsonrpc.WithMethodAlias("echo/say", "Echo.Echo"),
		jsonrpc.WithMethodAlias("echo/cancel", "Echo.Cancel"),
		jsonrpc.WithMethodAlias("echo/get", "Echo.Lookup"),
	)
	s.Require().NoError(err)

	s.server = httptest.NewServer(handler)
	s.client = ybbus.NewClientWithOpts(s.server.URL, &ybbus.RPCClientOpts{HTTPClient: s.server.Client()})
}

func (s *Suite) TearDownTest() {
	s.server.Close()
	s.Suite.TearDownTest()
}

func TestJsonRpc(t *testing.T) {
	suite.Run(t, new(Suite))
}

func (s *Suite) TestAliasAndServiceName() {
	var reply EchoReply
	s.Require().NoError(s.client.CallFor(s, &reply, "echo/say", &EchoArgs{Text: "ping"}))
	s.Equal("ping", reply.Text)

	reply = EchoReply{}
	s.Require().NoError(s.client.CallFor(s, &reply, "Echo.Echo", &EchoArgs{Text: "pong"}))
	s.Equal("pong", reply.Text)
}

func (s *Suite) TestErrorCodes() {
	var reply EchoReply

	err := s.client.CallFor(s, &reply, "echo/cancel", &EchoArgs{})
	var rpcErr *ybbus.RPCError
	s.Require().ErrorAs(err, &rpcErr)
	s.Equal(int(jsonrpc.ErrCodeTaskNotCancelable), rpcErr.Code)

	err = s.client.CallFor(s, &reply, "echo/get", &EchoArgs{})
	s.Require().ErrorAs(err, &rpcErr)
	s.Equal(int(jsonrpc.ErrCodeTaskNotFound), rpcErr.Code)

	err = s.client.CallFor(s, &reply, "echo/unknown", &EchoArgs{})
	s.Error(err)
}

func (s *Suite) TestRecoversFromPanic() {
	var reply EchoReply
	s.Error(s.client.CallFor(s, &reply, "Echo.Explode", &EchoArgs{}))

	// the server keeps serving
	s.Require().NoError(s.client.CallFor(s, &reply, "echo/say", &EchoArgs{Text: "alive"}))
	s.Equal("alive", reply.Text)
}
