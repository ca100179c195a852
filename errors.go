package kkrpc

import (
	"encoding/json"
	"fmt"

	"github.com/firi/kkrpc/internal/protocol"
)

// RpcError is carried inside a response's args.error and reported as the
// failure of the correlated call (spec.md §7). Name is the optional error
// kind tag, Message is human-readable, Data is the original error value
// preserved for diagnostics.
type RpcError struct {
	Name    string
	Message string
	Data    json.RawMessage
}

func (e *RpcError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s", e.Name, e.Message)
	}
	return e.Message
}

// RPCName lets a handler-returned error opt into carrying a Name through to
// the wire without constructing an *RpcError by hand.
type RPCName interface {
	RPCName() string
}

func rpcErrorFromWire(args protocol.ResponseArgs) *RpcError {
	if len(args.Error) == 0 {
		return nil
	}

	var obj protocol.WireError
	if err := json.Unmarshal(args.Error, &obj); err == nil && (obj.Name != "" || obj.Message != "") {
		msg := obj.Message
		if msg == "" {
			msg = "RPC error"
		}
		return &RpcError{Name: obj.Name, Message: msg, Data: args.Error}
	}

	// args.error was present but not a {name,message} object — still a
	// valid wire error per spec.md §3, just without a structured name.
	return &RpcError{Message: "RPC error", Data: args.Error}
}

// TransportError wraps a Transport failure: read, write, or close. It is
// surfaced to every outstanding caller when the peer's reader detects the
// transport has gone away, and from the originating call on a write failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("kkrpc: transport %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a received line that was not valid JSON or not a
// recognized envelope. It is logged and swallowed by the reader loop; it
// never reaches a caller and is never fatal.
type DecodeError struct {
	Line string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("kkrpc: could not decode line: %q", e.Line)
}

// HandlerError wraps a local handler failure (a returned error or a
// recovered panic) encountered while dispatching an inbound request. It is
// translated into an outbound RpcError response and never propagated to the reader.
type HandlerError struct {
	Method string
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("kkrpc: handler %q failed: %v", e.Method, e.Err)
}
func (e *HandlerError) Unwrap() error { return e.Err }

func (e *HandlerError) wireError() protocol.WireError {
	name := ""
	if named, ok := e.Err.(RPCName); ok {
		name = named.RPCName()
	}
	return protocol.WireError{Name: name, Message: e.Err.Error()}
}
