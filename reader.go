package kkrpc

import (
	"github.com/firi/kkrpc/internal/protocol"
	"github.com/firi/kkrpc/transport"
)

// readLoop pulls lines off the transport until it reports closed, decoding
// and dispatching each one. It is the only goroutine that calls
// transport.Read, started by NewPeer and running for the Peer's lifetime.
func (p *Peer) readLoop() {
	defer p.shutdown()

	for {
		line, err := p.transport.Read()
		if err != nil {
			if err != transport.ErrClosed {
				p.logger.Error("kkrpc: transport read: %v", err)
			}
			return
		}

		env, ok := protocol.Decode(line)
		if !ok {
			p.logger.Debug("%s", (&DecodeError{Line: line}).Error())
			continue
		}
		p.dispatch(env)
	}
}

// shutdown runs once the transport is gone: every outstanding Call/Get/Set
// is unblocked with a TransportError and the peer moves to Closed.
func (p *Peer) shutdown() {
	p.state.Store(int32(stateClosed))
	p.pending.CloseAll(&TransportError{Op: "read", Err: transport.ErrClosed})
	close(p.stopped)
}
