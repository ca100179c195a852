package kkrpc

import (
	"encoding/json"
	"fmt"

	"github.com/firi/kkrpc/internal/protocol"
)

// dispatch routes one decoded inbound envelope. It never blocks the reader
// goroutine on a slow handler: each request/construct is dispatched on its
// own goroutine so a stalled handler cannot stall unrelated in-flight calls.
func (p *Peer) dispatch(env protocol.Envelope) {
	switch env.Type {
	case protocol.KindResponse:
		p.dispatchResponse(env)
	case protocol.KindCallback:
		p.dispatchCallback(env)
	case protocol.KindRequest:
		go p.dispatchCall(env, p.api.method)
	case protocol.KindConstruct:
		go p.dispatchCall(env, p.api.constructor)
	case protocol.KindGet:
		go p.dispatchGet(env)
	case protocol.KindSet:
		go p.dispatchSet(env)
	}
}

func (p *Peer) dispatchResponse(env protocol.Envelope) {
	var args protocol.ResponseArgs
	if err := json.Unmarshal(env.Args, &args); err != nil {
		p.logger.Error("kkrpc: malformed response args for id %q: %v", env.ID, err)
		return
	}

	if rpcErr := rpcErrorFromWire(args); rpcErr != nil {
		p.pending.Reject(env.ID, rpcErr)
		return
	}
	p.pending.Resolve(env.ID, args.Result)
}

func (p *Peer) dispatchCallback(env protocol.Envelope) {
	var items []json.RawMessage
	if len(env.Args) > 0 {
		if err := json.Unmarshal(env.Args, &items); err != nil {
			p.logger.Error("kkrpc: malformed callback args for token %q: %v", env.Method, err)
			return
		}
	}
	if !p.callbacks.Invoke(env.Method, items) {
		p.logger.Debug("kkrpc: callback invoked for unknown or retired token %q", env.Method)
	}
}

func (p *Peer) dispatchCall(env protocol.Envelope, lookup func(string) (Handler, bool)) {
	handler, ok := lookup(env.Method)
	if !ok {
		// spec.md's observed cross-language contract: an unrecognized method
		// resolves to a null result, not an error, so callers across
		// different language implementations stay interoperable.
		p.respondResult(env.ID, json.RawMessage("null"))
		return
	}

	args, err := p.unmarshalArgs(env.ID, env.Args)
	if err != nil {
		p.respondError(env.ID, protocol.WireError{Message: fmt.Sprintf("malformed arguments: %v", err)})
		return
	}

	result, herr := p.invoke(env.Method, handler, args)
	if herr != nil {
		p.respondError(env.ID, herr.wireError())
		return
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		p.respondError(env.ID, protocol.WireError{Message: fmt.Sprintf("could not marshal result: %v", err)})
		return
	}
	p.respondResult(env.ID, resultJSON)
}

// invoke calls handler, translating both a returned error and a recovered
// panic into a *HandlerError. A panic is the Go-specific strengthening of
// spec.md's HandlerError taxonomy: the teacher's handlers can't panic across
// goroutines silently, so this peer never lets one escape uncaught.
func (p *Peer) invoke(method string, handler Handler, args []any) (result any, herr *HandlerError) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("kkrpc: handler %q panicked: %v", method, r)
			herr = &HandlerError{Method: method, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	res, err := handler(args)
	if err != nil {
		return nil, &HandlerError{Method: method, Err: err}
	}
	return res, nil
}

func (p *Peer) dispatchGet(env protocol.Envelope) {
	p.respondResult(env.ID, p.api.get(env.Path))
}

func (p *Peer) dispatchSet(env protocol.Envelope) {
	p.api.set(env.Path, env.Value)
	p.respondResult(env.ID, json.RawMessage("true"))
}

func (p *Peer) respondResult(id string, result json.RawMessage) {
	env, err := protocol.NewResult(id, result)
	if err != nil {
		p.logger.Error("kkrpc: build result envelope for id %q: %v", id, err)
		return
	}
	if err := p.writeEnvelope(env); err != nil {
		p.logger.Error("kkrpc: write result envelope for id %q: %v", id, err)
	}
}

func (p *Peer) respondError(id string, wireErr protocol.WireError) {
	env, err := protocol.NewError(id, wireErr)
	if err != nil {
		p.logger.Error("kkrpc: build error envelope for id %q: %v", id, err)
		return
	}
	if err := p.writeEnvelope(env); err != nil {
		p.logger.Error("kkrpc: write error envelope for id %q: %v", id, err)
	}
}
