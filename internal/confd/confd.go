// Package confd provides typed key lookups against the external runtime configuration
// daemon ("confd"). The daemon itself, and the decision of what backs a given key, are
// both out of scope here — this package only implements the client side of the lookup
// protocol, per spec.md §4.6.
package confd

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/blazemesh/coordinatord/internal/radioerr"
)

// request is the payload sent to confd for every lookup.
type request struct {
	Op  string `cbor:"op"`
	Key string `cbor:"key"`
}

// reply is the payload confd sends back. Found is false for "not found" and "null
// value" keys, matching spec.md §4.6's Option-returning semantics; Error is set (and
// Found is irrelevant) when the daemon reports a real failure.
type reply struct {
	Found bool   `cbor:"found"`
	Error string `cbor:"error,omitempty"`
	Int   int64  `cbor:"int,omitempty"`
	Real  float64 `cbor:"real,omitempty"`
	Blob  []byte `cbor:"blob,omitempty"`
}

const maxReplySize = 4096

// Reader is the typed-lookup subset of Client's API that consumers depend on, so
// tests can substitute an in-memory fake instead of dialing a real daemon.
type Reader interface {
	GetInt(key string) (*int64, error)
	GetReal(key string) (*float64, error)
	GetBlob(key string, out []byte) (int, error)
}

var _ Reader = (*Client)(nil)

// Client is a typed key/value reader backed by a persistent connection to confd.
type Client struct {
	mu   sync.Mutex
	fd   int
	path string
}

// Dial connects to the confd daemon's UNIX SEQPACKET socket at path.
func Dial(path string) (*Client, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		return nil, radioerr.IO(errors.Wrap(err, "create confd socket"))
	}

	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Connect(fd, addr); err != nil {
		unix.Close(fd)
		return nil, radioerr.IO(errors.Wrapf(err, "connect confd socket %q", path))
	}

	return &Client{fd: fd, path: path}, nil
}

// Close releases the underlying socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return unix.Close(c.fd)
}

func (c *Client) call(op, key string) (reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, err := cbor.Marshal(request{Op: op, Key: key})
	if err != nil {
		return reply{}, radioerr.IO(errors.Wrap(err, "encode confd request"))
	}

	if err := unix.Send(c.fd, body, 0); err != nil {
		return reply{}, radioerr.IO(errors.Wrapf(err, "send confd request %s %s", op, key))
	}

	buf := make([]byte, maxReplySize)
	n, _, err := unix.Recvfrom(c.fd, buf, 0)
	if err != nil {
		return reply{}, radioerr.IO(errors.Wrap(err, "receive confd reply"))
	}

	var r reply
	if err := cbor.Unmarshal(buf[:n], &r); err != nil {
		return reply{}, radioerr.IO(errors.Wrap(err, "decode confd reply"))
	}
	if r.Error != "" {
		return reply{}, radioerr.IO(fmt.Errorf("confd: %s %s: %s", op, key, r.Error))
	}
	return r, nil
}

// GetInt looks up key as an integer. Returns (nil, nil) for "not found" or "null
// value"; any other failure is returned as an error.
func (c *Client) GetInt(key string) (*int64, error) {
	r, err := c.call("get_int", key)
	if err != nil {
		return nil, err
	}
	if !r.Found {
		return nil, nil
	}
	v := r.Int
	return &v, nil
}

// GetReal looks up key as a floating-point value, with the same not-found/null
// semantics as GetInt.
func (c *Client) GetReal(key string) (*float64, error) {
	r, err := c.call("get_real", key)
	if err != nil {
		return nil, err
	}
	if !r.Found {
		return nil, nil
	}
	v := r.Real
	return &v, nil
}

// GetBlob copies up to len(out) bytes of key's value into out and returns the number
// of bytes copied. A null value copies zero bytes.
func (c *Client) GetBlob(key string, out []byte) (int, error) {
	r, err := c.call("get_blob", key)
	if err != nil {
		return 0, err
	}
	if !r.Found {
		return 0, nil
	}
	n := copy(out, r.Blob)
	return n, nil
}
