package value

import (
	"sync/atomic"

	"github.com/zhangyunhao116/skipmap"
)

// Token identifies a buffer handed to the host engine.
type Token uint64

// Registry keeps text and blob buffers reachable while the host engine owns them.
// Every Hand must be matched by exactly one Release, issued by the host's destructor callback.
type Registry struct {
	inflight *skipmap.FuncMap[Token, []byte]
	seq      atomic.Uint64
	observer func(inflight int)
}

// Option configures a Registry.
type Option func(r *Registry)

// WithObserver sets a func called with the in-flight count after every change.
func WithObserver(fn func(inflight int)) Option {
	return func(r *Registry) { r.observer = fn }
}

// NewRegistry makes an empty registry.
func NewRegistry(opts ...Option) *Registry {
	res := &Registry{inflight: skipmap.NewFunc[Token, []byte](func(a, b Token) bool { return a < b })}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

// Hand records buf as owned by the host and returns the token to release it with.
func (r *Registry) Hand(buf []byte) Token {
	tok := Token(r.seq.Add(1))
	r.inflight.Store(tok, buf)
	r.notify()
	return tok
}

// Release drops the buffer for tok. Returns false if tok is unknown or already released.
func (r *Registry) Release(tok Token) bool {
	_, ok := r.inflight.LoadAndDelete(tok)
	if ok {
		r.notify()
	}
	return ok
}

// Len returns the number of buffers currently owned by the host.
func (r *Registry) Len() int {
	return r.inflight.Len()
}

func (r *Registry) notify() {
	if r.observer != nil {
		r.observer(r.inflight.Len())
	}
}
