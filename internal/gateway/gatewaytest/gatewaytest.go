// Package gatewaytest provides a scripted gateway.Invoker for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"garment-lab/internal/gateway"
)

// Responder produces the result for one call.
type Responder func(ctx context.Context, call gateway.Call) gateway.Result

// Invoker records every call and answers from per-kind queues of responders.
// When a queue is exhausted its last responder is reused.
type Invoker struct {
	mu    sync.Mutex
	calls []gateway.Call
	queue map[gateway.Kind][]Responder
	seq   int
}

func New() *Invoker {
	return &Invoker{queue: make(map[gateway.Kind][]Responder)}
}

func (f *Invoker) On(kind gateway.Kind, responders ...Responder) *Invoker {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue[kind] = append(f.queue[kind], responders...)
	return f
}

func (f *Invoker) Invoke(ctx context.Context, call gateway.Call) gateway.Result {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.seq++
	id := fmt.Sprintf("req_test_%d", f.seq)

	queue := f.queue[call.Kind]
	var responder Responder
	switch len(queue) {
	case 0:
		responder = Fail(gateway.CodeUnknown, "no responder scripted for %s", call.Kind)
	case 1:
		responder = queue[0]
	default:
		responder = queue[0]
		f.queue[call.Kind] = queue[1:]
	}
	f.mu.Unlock()

	res := responder(ctx, call)
	res.RequestID = id
	res.Kind = call.Kind
	return res
}

func (f *Invoker) Calls() []gateway.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.Call(nil), f.calls...)
}

func (f *Invoker) CallsOf(kind gateway.Kind) []gateway.Call {
	var out []gateway.Call
	for _, call := range f.Calls() {
		if call.Kind == kind {
			out = append(out, call)
		}
	}
	return out
}

func Text(text string) Responder {
	return func(context.Context, gateway.Call) gateway.Result {
		return gateway.Result{Status: gateway.StatusSuccess, Text: text}
	}
}

// TextFunc answers with a function of the call, e.g. to echo the prompt.
func TextFunc(fn func(call gateway.Call) string) Responder {
	return func(_ context.Context, call gateway.Call) gateway.Result {
		return gateway.Result{Status: gateway.StatusSuccess, Text: fn(call)}
	}
}

func Image(data []byte, mediaType string) Responder {
	return func(context.Context, gateway.Call) gateway.Result {
		return gateway.Result{Status: gateway.StatusSuccess, Image: &gateway.Image{Data: data, MediaType: mediaType}}
	}
}

func Fail(code, format string, args ...any) Responder {
	return func(context.Context, gateway.Call) gateway.Result {
		return gateway.Result{Status: gateway.StatusFailure, Err: &gateway.Error{Code: code, Message: fmt.Sprintf(format, args...)}}
	}
}

// Block waits until release is closed or ctx is done, then defers to next.
func Block(release <-chan struct{}, next Responder) Responder {
	return func(ctx context.Context, call gateway.Call) gateway.Result {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return next(ctx, call)
	}
}
