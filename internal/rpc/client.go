package rpc

import (
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/blazemesh/coordinatord/internal/runloop"
)

// clientConn is one accepted RPC connection: a socket fd, its run-loop watcher, and
// the dead flag that marks it for the next garbage collection pass.
type clientConn struct {
	fd      int
	backend Backend
	log     *zap.Logger
	watcher *runloop.FDWatcher
	dead    bool
}

func newClientConn(fd int, backend Backend, log *zap.Logger) *clientConn {
	return &clientConn{fd: fd, backend: backend, log: log}
}

func (c *clientConn) close() {
	if c.watcher != nil {
		c.watcher.Stop()
	}
	unix.Close(c.fd)
	c.dead = true
}

// handleReadable drains one datagram and dispatches it. Any framing or dispatch
// error marks the connection dead instead of replying, per spec.md §4.5: "any
// exception from dispatch or CBOR decoding closes the connection."
func (c *clientConn) handleReadable() {
	buf := make([]byte, MaxPacketSize)
	n, _, err := unix.Recvfrom(c.fd, buf, 0)
	if err != nil {
		c.dead = true
		return
	}
	if n == 0 {
		// EOF on a SEQPACKET socket: the peer closed the connection.
		c.dead = true
		return
	}

	hdr, payload, err := ParseRequest(buf[:n])
	if err != nil {
		c.log.Warn("rpc request framing error", zap.Error(err))
		c.dead = true
		return
	}

	var (
		reply []byte
		hErr  error
	)
	switch hdr.Endpoint {
	case EndpointConfig:
		reply, hErr = HandleConfig(c.backend, payload)
	case EndpointStatus:
		reply, hErr = HandleStatus(c.backend, payload)
	default:
		c.log.Warn("rpc unknown endpoint", zap.Uint8("endpoint", uint8(hdr.Endpoint)))
		c.dead = true
		return
	}

	if hErr != nil {
		c.log.Warn("rpc endpoint dispatch failed", zap.Error(hErr))
		c.dead = true
		return
	}

	if err := unix.Send(c.fd, EncodeReply(hdr, reply), 0); err != nil {
		c.dead = true
	}
}
