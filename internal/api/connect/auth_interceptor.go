package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"
)

const (
	// AdminTokenHeader is the header name for admin authentication token.
	AdminTokenHeader = "X-Admin-Token"
)

// adminAuth rejects admin calls without the configured token.
type adminAuth struct {
	token string
}

// NewAdminAuthInterceptor creates an interceptor that validates admin tokens
// on unary and streaming AdminService calls.
func NewAdminAuthInterceptor(token string) connect.Interceptor {
	return &adminAuth{token: token}
}

func (a *adminAuth) check(token string) error {
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
		return connect.NewError(connect.CodeUnauthenticated, nil)
	}
	return nil
}

func (a *adminAuth) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if err := a.check(req.Header().Get(AdminTokenHeader)); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (a *adminAuth) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (a *adminAuth) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if err := a.check(conn.RequestHeader().Get(AdminTokenHeader)); err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

// tokenHeader attaches the admin token to outgoing calls.
type tokenHeader struct {
	token string
}

// NewTokenInterceptor creates a client interceptor sending token in the
// admin token header.
func NewTokenInterceptor(token string) connect.Interceptor {
	return &tokenHeader{token: token}
}

func (t *tokenHeader) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		req.Header().Set(AdminTokenHeader, t.token)
		return next(ctx, req)
	}
}

func (t *tokenHeader) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		conn.RequestHeader().Set(AdminTokenHeader, t.token)
		return conn
	}
}

func (t *tokenHeader) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
