package rpc

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/blazemesh/coordinatord/internal/radioerr"
	"github.com/blazemesh/coordinatord/internal/runloop"
)

// ListenBacklog is the kernel accept backlog for the listening socket.
const ListenBacklog = 5

// ClientGCInterval is how often the periodic sweep removes dead clients.
const ClientGCInterval = 15 * time.Second

// ClientGCMaxOffcycle bounds the number of off-cycle collections run under
// connection-admission pressure between scheduled sweeps.
const ClientGCMaxOffcycle = 10

// Server is the local control-plane listener: it accepts clients on a UNIX
// SEQPACKET socket, frames their requests, and dispatches to the registered
// endpoint handlers.
type Server struct {
	log  *zap.Logger
	loop *runloop.Loop

	backend Backend

	path       string
	listenFd   int
	listenStop *runloop.FDWatcher

	clients          []*clientConn
	gcTimer          *runloop.Timer
	offCycleGcCount  int
	rejectedClients  uint64
}

// New creates and starts listening on a UNIX SEQPACKET socket at path. Any file
// already present there is removed first.
func New(path string, backend Backend, loop *runloop.Loop, log *zap.Logger) (*Server, error) {
	_ = os.Remove(path)

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		return nil, radioerr.IO(errors.Wrap(err, "create rpc socket"))
	}

	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, radioerr.IO(errors.Wrapf(err, "bind rpc socket %q", path))
	}
	if err := unix.Listen(fd, ListenBacklog); err != nil {
		unix.Close(fd)
		return nil, radioerr.IO(errors.Wrap(err, "listen rpc socket"))
	}

	s := &Server{
		log:      log,
		loop:     loop,
		backend:  backend,
		path:     path,
		listenFd: fd,
	}

	s.listenStop = loop.WatchReadable(fd, s.acceptClient)
	s.gcTimer = loop.NewTimer(ClientGCInterval, s.scheduledGC)

	return s, nil
}

// Close stops accepting new clients, drops all existing connections, closes the
// listening socket, and removes the socket file.
func (s *Server) Close() error {
	s.listenStop.Stop()
	s.gcTimer.Stop()

	for _, c := range s.clients {
		c.close()
	}
	s.clients = nil

	err := unix.Close(s.listenFd)
	_ = os.Remove(s.path)
	return err
}

// NumClients reports the current connected client count.
func (s *Server) NumClients() int {
	return len(s.clients)
}

// RejectedClients reports how many connection attempts were refused because the
// server was at capacity.
func (s *Server) RejectedClients() uint64 {
	return s.rejectedClients
}

func (s *Server) acceptClient() {
	fd, _, err := unix.Accept(s.listenFd)
	if err != nil {
		s.log.Warn("rpc accept failed", zap.Error(err))
		return
	}

	if len(s.clients) >= MaxClients {
		if s.offCycleGcCount < ClientGCMaxOffcycle {
			s.garbageCollect()
			s.offCycleGcCount++
		}
	}

	if len(s.clients) >= MaxClients {
		unix.Close(fd)
		s.rejectedClients++
		s.log.Warn("rpc client rejected, at capacity", zap.Int("limit", MaxClients))
		return
	}

	c := newClientConn(fd, s.backend, s.log)
	c.watcher = s.loop.WatchReadable(fd, func() { s.serviceClient(c) })
	s.clients = append(s.clients, c)
}

func (s *Server) serviceClient(c *clientConn) {
	c.handleReadable()
	if c.dead {
		c.close()
	}
}

func (s *Server) scheduledGC() {
	s.garbageCollect()
	s.offCycleGcCount = 0
}

func (s *Server) garbageCollect() {
	live := s.clients[:0]
	for _, c := range s.clients {
		if c.dead {
			c.close()
			continue
		}
		live = append(live, c)
	}
	s.clients = live
}
