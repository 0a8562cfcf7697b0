// Package middleware runs every API route through one ordered chain of
// stages and writes exactly one JSON envelope per request.
package middleware

import (
	"context"
	"net/http"
	"runtime/debug"

	"apicore/internal/domain"
	"apicore/internal/failure"
)

// Handler produces the payload of one request.
type Handler func(ctx context.Context, req *Request) (any, error)

// Stage wraps a Handler with one cross-cutting concern.
type Stage func(Handler) Handler

// Chain composes stages so the first one is outermost.
func Chain(stages ...Stage) Stage {
	return func(h Handler) Handler {
		for i := len(stages) - 1; i >= 0; i-- {
			if stages[i] != nil {
				h = stages[i](h)
			}
		}
		return h
	}
}

// recoverPanics turns a panic in next into a domain.PanicError.
func recoverPanics(next Handler) Handler {
	return func(ctx context.Context, req *Request) (out any, err error) {
		defer func() {
			if p := recover(); p != nil {
				out, err = nil, domain.PanicError{Value: p, Stack: debug.Stack()}
			}
		}()
		return next(ctx, req)
	}
}

// SuccessStatus is the status written for a successful call of method.
func SuccessStatus(method string) int {
	if method == http.MethodPost {
		return http.StatusCreated
	}
	return http.StatusOK
}

// statusOf reports the status the request will end with.
func statusOf(method string, err error) int {
	if err == nil {
		return SuccessStatus(method)
	}
	return failure.Resolver{Production: true}.Resolve(err).Status
}
