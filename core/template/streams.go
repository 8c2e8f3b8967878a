package template

import (
	"io"
	"sort"
	"sync"

	"github.com/searchktools/tmplserve/core/http"
)

// StreamFunc writes generated content for a `call` directive.
type StreamFunc func(w io.Writer, ctx *http.Context) error

// Registry maps stream names to handlers. It is filled at startup and only
// read while serving.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]StreamFunc
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{streams: make(map[string]StreamFunc)}
}

// Register adds fn under name, replacing any previous handler.
func (r *Registry) Register(name string, fn StreamFunc) {
	r.mu.Lock()
	r.streams[name] = fn
	r.mu.Unlock()
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (StreamFunc, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	fn, ok := r.streams[name]
	r.mu.RUnlock()
	return fn, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.streams))
	for name := range r.streams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
