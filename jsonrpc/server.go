package jsonrpc

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/internal/mylog"
)

type (
	StartTimeCtxKey string

	ServerOption func(server *rpc.Server, codec *aliasCodec) error
)

var (
	startTimeCtxKey StartTimeCtxKey = "jsonrpc.startTime"
)

// A2A error codes.
const (
	ErrCodeTaskNotFound         json2.ErrorCode = -32001
	ErrCodeTaskNotCancelable    json2.ErrorCode = -32002
	ErrCodeUnsupportedOperation json2.ErrorCode = -32004
)

// WithService registers receiver's exported methods under name.
func WithService(receiver any, name string) ServerOption {
	return func(s *rpc.Server, _ *aliasCodec) error {
		return errors.Wrapf(s.RegisterService(receiver, name), "failed to register service %s", name)
	}
}

// WithMethodAlias serves a slash style method name such as "message/send"
// with a registered "Service.Method".
func WithMethodAlias(alias, method string) ServerOption {
	return func(_ *rpc.Server, c *aliasCodec) error {
		c.aliases[alias] = method
		return nil
	}
}

func newRPCServer(logger *slog.Logger, opts ...ServerOption) (*rpc.Server, error) {
	server := rpc.NewServer()
	codec := &aliasCodec{
		Codec:   json2.NewCustomCodecWithErrorMapper(rpc.DefaultEncoderSelector, errorMapper(logger)),
		aliases: map[string]string{},
	}
	for _, opt := range opts {
		if err := opt(server, codec); err != nil {
			return nil, err
		}
	}

	server.RegisterBeforeFunc(func(i *rpc.RequestInfo) {
		ctx := context.WithValue(i.Request.Context(), startTimeCtxKey, time.Now())
		i.Request = i.Request.WithContext(ctx)
	})
	server.RegisterAfterFunc(func(i *rpc.RequestInfo) {
		logger := logger.WithGroup("jsonrpc")
		if startTime, ok := i.Request.Context().Value(startTimeCtxKey).(time.Time); ok {
			logger = logger.With(slog.Duration("duration", time.Since(startTime)))
		}
		if i.Error != nil {
			logger = logger.With(mylog.Err(i.Error))
		}
		logger.Info("[JSON-RPC] call",
			slog.Int("statusCode", i.StatusCode),
			slog.String("method", i.Method),
			slog.Bool("error", i.Error != nil),
		)
	})
	server.RegisterCodec(codec, "application/json")

	return server, nil
}

func errorMapper(logger *slog.Logger) func(error) error {
	return func(err error) error {
		if err == nil {
			return nil
		}

		var rpcErr *json2.Error
		if errors.As(err, &rpcErr) {
			return rpcErr
		}

		logger.Warn("[JSON-RPC] error", mylog.Err(err))
		e := &json2.Error{Message: err.Error()}
		switch {
		case errors.Is(err, errors.ErrInvalidParams):
			e.Code = json2.E_BAD_PARAMS
		case errors.Is(err, errors.ErrInvalidRequest):
			e.Code = json2.E_INVALID_REQ
		case errors.Is(err, errors.ErrNotFound):
			e.Code = ErrCodeTaskNotFound
		case errors.Is(err, errors.ErrTaskNotCancelable):
			e.Code = ErrCodeTaskNotCancelable
		case errors.Is(err, errors.ErrUnsupportedOperation):
			e.Code = ErrCodeUnsupportedOperation
		default:
			e.Code = json2.E_INTERNAL
		}

		return e
	}
}

type aliasCodec struct {
	rpc.Codec
	aliases map[string]string
}

func (c *aliasCodec) NewRequest(r *http.Request) rpc.CodecRequest {
	return &aliasCodecRequest{
		CodecRequest: c.Codec.NewRequest(r),
		aliases:      c.aliases,
	}
}

type aliasCodecRequest struct {
	rpc.CodecRequest
	aliases map[string]string
}

func (r *aliasCodecRequest) Method() (string, error) {
	method, err := r.CodecRequest.Method()
	if err != nil {
		return "", err
	}
	if target, ok := r.aliases[method]; ok {
		return target, nil
	}

	return method, nil
}
