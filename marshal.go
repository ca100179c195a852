package kkrpc

import (
	"encoding/json"

	"github.com/firi/kkrpc/internal/callback"
	"github.com/firi/kkrpc/internal/protocol"
)

// marshalArgs renders an outbound argument list to the wire's JSON array
// form. Any Callback value is registered in reg under a fresh token and
// substituted with the "__callback__<token>" marker string (spec.md §6);
// the tokens used are also returned for the envelope's callbackIds hint.
func marshalArgs(reg *callback.Registry, args []any) (json.RawMessage, []string, error) {
	items := make([]json.RawMessage, len(args))
	var ids []string

	for i, a := range args {
		if fn, ok := a.(Callback); ok {
			token := protocol.NewID()
			reg.Register(token, callback.Func(fn))
			ids = append(ids, token)

			b, err := json.Marshal(callback.Prefix + token)
			if err != nil {
				return nil, nil, err
			}
			items[i] = b
			continue
		}

		b, err := json.Marshal(a)
		if err != nil {
			return nil, nil, err
		}
		items[i] = b
	}

	arr, err := json.Marshal(items)
	if err != nil {
		return nil, nil, err
	}
	return arr, ids, nil
}

// unmarshalArgs decodes an inbound request/construct/callback args array
// into plain Go values. Any "__callback__<token>" marker becomes a Callback
// closure that, when invoked, emits a callback envelope correlated by
// requestID back across p's transport.
func (p *Peer) unmarshalArgs(requestID string, raw json.RawMessage) ([]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	out := make([]any, len(items))
	for i, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if token, ok := callback.SplitToken(s); ok {
				out[i] = p.synthesizeCallback(requestID, token)
				continue
			}
			out[i] = s
			continue
		}

		var v any
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// synthesizeCallback builds the proxy Callback a handler receives in place
// of a remote function argument. Every invocation sends one callback
// envelope; there is no limit and no deregistration (spec.md §9).
func (p *Peer) synthesizeCallback(requestID, token string) Callback {
	return func(args []json.RawMessage) {
		if args == nil {
			args = []json.RawMessage{}
		}
		argsJSON, err := json.Marshal(args)
		if err != nil {
			p.logger.Error("kkrpc: marshal callback args: %v", err)
			return
		}

		env := protocol.Envelope{
			ID:      requestID,
			Type:    protocol.KindCallback,
			Version: protocol.Version,
			Method:  token,
			Args:    argsJSON,
		}
		if err := p.writeEnvelope(env); err != nil {
			p.logger.Error("kkrpc: write callback envelope: %v", err)
		}
	}
}
