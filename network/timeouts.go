package network

import (
	"context"
	"net"
	"net/http"
	"time"
)

// Timeouts bound every phase of a dispatch independently. Zero disables one.
type Timeouts struct {
	Request        time.Duration
	Connect        time.Duration
	ResponseHeader time.Duration
	Write          time.Duration
	Idle           time.Duration
}

const (
	DefaultRequestTimeout             = 120 * time.Second
	DefaultOrchestratorRequestTimeout = 300 * time.Second
)

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Request: DefaultRequestTimeout,
		Connect: 10 * time.Second,
		Write:   10 * time.Second,
		Idle:    5 * time.Second,
	}
}

// WithRequest returns a copy with the request timeout replaced.
func (t Timeouts) WithRequest(d time.Duration) Timeouts {
	t.Request = d
	return t
}

func (t Timeouts) HTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: t.Connect}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil || t.Write <= 0 {
				return conn, err
			}
			return &writeDeadlineConn{Conn: conn, timeout: t.Write}, nil
		},
		ResponseHeaderTimeout: t.ResponseHeader,
		IdleConnTimeout:       t.Idle,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   t.Request,
	}
}

type writeDeadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *writeDeadlineConn) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}
