// Package callback holds the caller-side registry of local functions that
// were passed as arguments to a remote call, and the wire-marker prefix
// shared by both the caller (who mints tokens) and the callee (who
// recognizes them in inbound args).
package callback

import (
	"encoding/json"
	"strings"
	"sync"
)

// Prefix marks a string argument as a callback token rather than a plain value.
const Prefix = "__callback__"

// Func is a local function reachable from the remote side. It may be
// invoked any number of times; there is no wire-level way to retire it
// (spec.md §9's accepted leak property).
type Func func(args []json.RawMessage)

// SplitToken reports whether s is a callback marker and returns the bare
// token with the prefix stripped.
func SplitToken(s string) (token string, ok bool) {
	if !strings.HasPrefix(s, Prefix) {
		return "", false
	}
	return strings.TrimPrefix(s, Prefix), true
}

// Registry holds the local functions a peer has exposed to its remote side,
// keyed by the opaque token that was substituted for them on the wire.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Func
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Func)}
}

// Register stores fn under token, which the caller mints; a function already
// stored under the same token is replaced.
func (r *Registry) Register(token string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[token] = fn
}

// Invoke calls the function stored under token with args, if one is
// registered. It reports whether a function was found; an absent token is
// dropped silently per spec.md §4.4, left to the caller to decide whether
// that's worth logging.
func (r *Registry) Invoke(token string, args []json.RawMessage) bool {
	r.mu.Lock()
	fn, ok := r.entries[token]
	r.mu.Unlock()
	if !ok {
		return false
	}
	fn(args)
	return true
}

// Len reports the number of currently registered callbacks, useful for
// diagnostics given the registry only ever grows (spec.md §9).
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
