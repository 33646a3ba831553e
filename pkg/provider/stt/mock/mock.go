// Package mock provides a configurable stt.Provider for tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/lectio/lectio/pkg/provider/stt"
)

// Provider is a mock stt.Provider. Configure it with results keyed by file
// path, or set Fn for full control. The zero value returns an error for every
// call.
type Provider struct {
	mu sync.Mutex

	// Fn, when set, handles every Transcribe call.
	Fn func(ctx context.Context, req stt.Request) (*stt.Result, error)

	// Results maps file paths to canned results.
	Results map[string]*stt.Result

	// Err, when set, is returned by every call that has no matching result.
	Err error

	calls []stt.Request
}

var _ stt.Provider = (*Provider)(nil)

// Transcribe records the request and returns the configured result.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Fn != nil {
		return p.Fn(ctx, req)
	}
	if res, ok := p.Results[req.FilePath]; ok {
		return res, nil
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return nil, fmt.Errorf("mock: no result configured for %q", req.FilePath)
}

// Calls returns a copy of all requests seen so far.
func (p *Provider) Calls() []stt.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]stt.Request, len(p.calls))
	copy(out, p.calls)
	return out
}
