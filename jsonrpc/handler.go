package jsonrpc

import (
	"context"
	"log/slog"
	"net/http"
)

func NewHandler(logger *slog.Logger, opts ...ServerOption) (http.Handler, error) {
	rpcServer, err := newRPCServer(logger, opts...)
	if err != nil {
		return nil, err
	}

	return NewRecoveryHandler(logger)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithCancel(r.Context())
			defer cancel()

			rpcServer.ServeHTTP(w, r.WithContext(ctx))
		}),
	), nil
}
