// Package protocol implements the wire codec for the kkrpc line-framed JSON
// protocol: the envelope shape shared by all six message kinds, and the
// random id generator used for request and callback tokens.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the envelope's "type" field.
type Kind string

const (
	KindRequest   Kind = "request"
	KindResponse  Kind = "response"
	KindCallback  Kind = "callback"
	KindGet       Kind = "get"
	KindSet       Kind = "set"
	KindConstruct Kind = "construct"
)

// Version is the literal value every envelope carries. Peers may reject any other value.
const Version = "json"

// Envelope is the superset of fields across all six message kinds. Only the
// fields relevant to Type are populated on encode; unused fields are omitted.
type Envelope struct {
	ID          string          `json:"id"`
	Type        Kind            `json:"type"`
	Version     string          `json:"version"`
	Method      string          `json:"method,omitempty"`
	Args        json.RawMessage `json:"args,omitempty"`
	Path        []string        `json:"path,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	CallbackIDs []string        `json:"callbackIds,omitempty"`
}

// ResponseArgs is the args object carried by a response envelope: exactly
// one of Result or Error is set.
type ResponseArgs struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// WireError is the shape of a response's args.error when it is a structured
// object (name/message/data), matching spec.md's RpcError fields.
type WireError struct {
	Name    string          `json:"name,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Encode marshals env to a single wire line. It refuses to produce a line
// containing an embedded newline, which would break framing for every
// message after it (spec.md §8's "Framing" property).
func Encode(env Envelope) (string, error) {
	env.Version = Version
	b, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("protocol: encode envelope: %w", err)
	}
	line := string(b)
	if strings.ContainsAny(line, "\r\n") {
		return "", fmt.Errorf("protocol: encoded envelope contains an embedded newline")
	}
	return line, nil
}

// Decode parses one wire line into an Envelope. It returns ok=false (never
// an error) for anything the codec must drop silently per spec.md §4.2:
// malformed JSON, an empty line, or a missing/unrecognized Type.
func Decode(line string) (env Envelope, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Envelope{}, false
	}
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return Envelope{}, false
	}
	switch env.Type {
	case KindRequest, KindResponse, KindCallback, KindGet, KindSet, KindConstruct:
		return env, true
	default:
		return Envelope{}, false
	}
}

// NewResult builds a response envelope carrying a successful result.
func NewResult(id string, result json.RawMessage) (Envelope, error) {
	if result == nil {
		result = json.RawMessage("null")
	}
	args, err := json.Marshal(ResponseArgs{Result: result})
	if err != nil {
		return Envelope{}, fmt.Errorf("protocol: marshal result args: %w", err)
	}
	return Envelope{ID: id, Type: KindResponse, Version: Version, Args: args}, nil
}

// NewError builds a response envelope carrying a wire error.
func NewError(id string, wireErr WireError) (Envelope, error) {
	errJSON, err := json.Marshal(wireErr)
	if err != nil {
		return Envelope{}, fmt.Errorf("protocol: marshal wire error: %w", err)
	}
	args, err := json.Marshal(ResponseArgs{Error: errJSON})
	if err != nil {
		return Envelope{}, fmt.Errorf("protocol: marshal error args: %w", err)
	}
	return Envelope{ID: id, Type: KindResponse, Version: Version, Args: args}, nil
}
