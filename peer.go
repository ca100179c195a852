// Package kkrpc is a symmetric, line-framed JSON-RPC engine: every Peer is
// simultaneously a client (it can call out) and a server (it answers
// inbound calls), multiplexed over one full-duplex Transport. See
// SPEC_FULL.md for the protocol this package implements.
package kkrpc

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/firi/kkrpc/internal/callback"
	"github.com/firi/kkrpc/internal/logger"
	"github.com/firi/kkrpc/internal/pending"
	"github.com/firi/kkrpc/internal/protocol"
	"github.com/firi/kkrpc/transport"
)

// state is the Peer's position in the Open → Closing → Closed machine (spec.md §4.8).
type state int32

const (
	stateOpen state = iota
	stateClosing
	stateClosed
)

// PeerOption configures a Peer at construction time.
type PeerOption func(*Peer)

// WithLogger attaches a diagnostic logger for decode errors and recovered
// handler panics. The default is a NullLogger.
func WithLogger(l logger.Logger) PeerOption {
	return func(p *Peer) { p.logger = l }
}

// Peer is one endpoint: both Client and Server roles live together, per
// spec.md §2. Construct with NewPeer; the reader goroutine is started
// immediately and runs until the Transport reports closed.
type Peer struct {
	transport transport.Transport
	api       *Api
	logger    logger.Logger

	pending   *pending.Table
	callbacks *callback.Registry

	writeMu sync.Mutex

	state     atomic.Int32
	closeOnce sync.Once
	stopped   chan struct{}
}

// NewPeer constructs a Peer over t, exposing api (nil means no locally
// callable methods/constructors, only an empty property store), and starts
// its reader loop.
func NewPeer(t transport.Transport, api *Api, opts ...PeerOption) *Peer {
	if api == nil {
		api = NewApi()
	}
	p := &Peer{
		transport: t,
		api:       api,
		logger:    logger.NullLogger{},
		pending:   pending.New(),
		callbacks: callback.New(),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.readLoop()
	return p
}

// Call invokes method on the remote peer with args, which may include
// Callback values. It blocks until the response arrives, ctx is canceled,
// or the transport closes.
func (p *Peer) Call(ctx context.Context, method string, args []any) (json.RawMessage, error) {
	return p.request(ctx, protocol.KindRequest, method, args)
}

// Construct invokes the remote constructor named name, identical in every
// respect to Call except it is routed to the remote api.constructors map
// (spec.md §9's resolved Open Question: construct responses wrap values
// exactly like request responses).
func (p *Peer) Construct(ctx context.Context, name string, args []any) (json.RawMessage, error) {
	return p.request(ctx, protocol.KindConstruct, name, args)
}

func (p *Peer) request(ctx context.Context, kind protocol.Kind, method string, args []any) (json.RawMessage, error) {
	if p.state.Load() != int32(stateOpen) {
		return nil, &TransportError{Op: "call", Err: transport.ErrClosed}
	}

	argsJSON, callbackIDs, err := marshalArgs(p.callbacks, args)
	if err != nil {
		return nil, err
	}

	id := protocol.NewID()
	env := protocol.Envelope{
		ID:          id,
		Type:        kind,
		Version:     protocol.Version,
		Method:      method,
		Args:        argsJSON,
		CallbackIDs: callbackIDs,
	}

	ch := p.pending.Insert(id)
	if err := p.writeEnvelope(env); err != nil {
		p.pending.Remove(id)
		return nil, &TransportError{Op: "write", Err: err}
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Value, nil
	case <-ctx.Done():
		p.pending.Remove(id)
		return nil, ctx.Err()
	case <-p.stopped:
		return nil, &TransportError{Op: "read", Err: transport.ErrClosed}
	}
}

// Get reads path (joined with ".") from the remote property store. Absent
// keys come back as JSON null, never an error.
func (p *Peer) Get(ctx context.Context, path []string) (json.RawMessage, error) {
	if p.state.Load() != int32(stateOpen) {
		return nil, &TransportError{Op: "call", Err: transport.ErrClosed}
	}

	id := protocol.NewID()
	env := protocol.Envelope{ID: id, Type: protocol.KindGet, Version: protocol.Version, Path: path}

	ch := p.pending.Insert(id)
	if err := p.writeEnvelope(env); err != nil {
		p.pending.Remove(id)
		return nil, &TransportError{Op: "write", Err: err}
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Value, nil
	case <-ctx.Done():
		p.pending.Remove(id)
		return nil, ctx.Err()
	case <-p.stopped:
		return nil, &TransportError{Op: "read", Err: transport.ErrClosed}
	}
}

// Set writes value to path on the remote property store. It returns nil on
// success (the wire result is always the literal true).
func (p *Peer) Set(ctx context.Context, path []string, value any) error {
	if p.state.Load() != int32(stateOpen) {
		return &TransportError{Op: "call", Err: transport.ErrClosed}
	}

	valueJSON, err := json.Marshal(value)
	if err != nil {
		return err
	}

	id := protocol.NewID()
	env := protocol.Envelope{ID: id, Type: protocol.KindSet, Version: protocol.Version, Path: path, Value: valueJSON}

	ch := p.pending.Insert(id)
	if err := p.writeEnvelope(env); err != nil {
		p.pending.Remove(id)
		return &TransportError{Op: "write", Err: err}
	}

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		p.pending.Remove(id)
		return ctx.Err()
	case <-p.stopped:
		return &TransportError{Op: "read", Err: transport.ErrClosed}
	}
}

// Done returns a channel closed once the Peer has finished its
// Open→Closed transition, useful for a long-lived server process that
// should exit when its transport goes away.
func (p *Peer) Done() <-chan struct{} {
	return p.stopped
}

// Close closes the underlying Transport. The reader goroutine observes the
// next Read failure and finishes the Open→Closed transition. Idempotent.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.state.Store(int32(stateClosing))
		err = p.transport.Close()
	})
	return err
}

func (p *Peer) writeEnvelope(env protocol.Envelope) error {
	line, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.transport.Write(line)
}
