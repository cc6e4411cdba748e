package runtime

import (
	"context"
	"net/http"

	"github.com/habiliai/agentmesh/entity"
	"github.com/habiliai/agentmesh/errors"
	"github.com/ybbus/jsonrpc/v3"
)

type (
	A2AClient interface {
		SendMessage(ctx context.Context, params *MessageSendParams) (*entity.SendMessageResult, error)
		GetTask(ctx context.Context, params *TaskQueryParams) (*entity.Task, error)
		CancelTask(ctx context.Context, params *TaskIDParams) (*entity.Task, error)
	}

	a2aClient struct {
		client jsonrpc.RPCClient
	}
)

func (c *a2aClient) SendMessage(ctx context.Context, params *MessageSendParams) (*entity.SendMessageResult, error) {
	var reply entity.SendMessageResult
	if err := c.call(ctx, &reply, MethodSendMessage, params); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *a2aClient) GetTask(ctx context.Context, params *TaskQueryParams) (*entity.Task, error) {
	var reply entity.Task
	if err := c.call(ctx, &reply, MethodGetTask, params); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *a2aClient) CancelTask(ctx context.Context, params *TaskIDParams) (*entity.Task, error) {
	var reply entity.Task
	if err := c.call(ctx, &reply, MethodCancelTask, params); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *a2aClient) call(ctx context.Context, out any, method string, params any) error {
	resp, err := c.client.Call(ctx, method, params)
	if err != nil {
		return errors.Wrapf(err, "failed to call %s", method)
	}
	if resp.Error != nil {
		return errors.Wrapf(resp.Error, "%s failed", method)
	}
	if resp.Result == nil {
		return errors.Wrapf(errors.ErrInvalidRequest, "%s returned an empty result", method)
	}
	if err := resp.GetObject(out); err != nil {
		return errors.Wrapf(err, "failed to decode %s result", method)
	}
	return nil
}

// NewA2AClient binds a JSON-RPC client to an agent's base URL. A nil
// httpClient uses http.DefaultClient.
func NewA2AClient(url string, httpClient *http.Client) A2AClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &a2aClient{
		client: jsonrpc.NewClientWithOpts(url, &jsonrpc.RPCClientOpts{
			HTTPClient: httpClient,
		}),
	}
}
