// Package pending implements the correlator between an outbound request id
// and the goroutine awaiting its response.
package pending

import (
	"encoding/json"
	"sync"
)

// Result is what a pending entry delivers: either Value (a successful
// result) or Err (a transport or RPC failure), never both.
type Result struct {
	Value json.RawMessage
	Err   error
}

// Table correlates request ids to a single-shot delivery channel. Insert is
// called before the outbound write; the channel is read exactly once by the
// caller awaiting that id's response.
type Table struct {
	mu      sync.Mutex
	entries map[string]chan Result
}

// New returns an empty table.
func New() *Table {
	return &Table{entries: make(map[string]chan Result)}
}

// Insert registers id and returns the channel its eventual Result will
// arrive on. The channel has one buffered slot so Resolve/Reject never
// blocks even if the awaiter has already given up (timeout, context
// cancellation).
func (t *Table) Insert(id string) <-chan Result {
	ch := make(chan Result, 1)
	t.mu.Lock()
	t.entries[id] = ch
	t.mu.Unlock()
	return ch
}

// Remove discards id's entry without delivering anything, used when a
// caller abandons a call (context deadline) so the table doesn't grow
// without bound (spec.md §5).
func (t *Table) Remove(id string) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

// Resolve delivers a successful result to id's awaiter. A response whose id
// has no entry (already delivered, already abandoned, or never ours) is
// discarded silently per spec.md §3/§4.5.
func (t *Table) Resolve(id string, value json.RawMessage) {
	t.deliver(id, Result{Value: value})
}

// Reject delivers a failure to id's awaiter, same discard-if-absent rule as Resolve.
func (t *Table) Reject(id string, err error) {
	t.deliver(id, Result{Err: err})
}

func (t *Table) deliver(id string, res Result) {
	t.mu.Lock()
	ch, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	ch <- res
}

// CloseAll delivers err to every still-outstanding entry and empties the
// table. Called once, at the Open→Closed transition (spec.md §4.8).
func (t *Table) CloseAll(err error) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]chan Result)
	t.mu.Unlock()

	for _, ch := range entries {
		ch <- Result{Err: err}
	}
}
