// Package rpc implements the local control-plane server: a UNIX SEQPACKET listener
// that accepts client connections, frames requests and replies with a fixed header
// plus a CBOR payload, and dispatches by endpoint ID, per spec.md §4.5.
package rpc

import (
	"encoding/binary"

	"github.com/blazemesh/coordinatord/internal/radioerr"
)

// CurrentVersion is the only Header.Version this server accepts.
const CurrentVersion uint16 = 0x0100

// HeaderSize is the encoded size of Header.
const HeaderSize = 2 + 2 + 1 + 1

// MaxPacketSize bounds a single client datagram, header included.
const MaxPacketSize = 4096

// MaxClients bounds the number of simultaneously connected clients.
const MaxClients = 100

// Endpoint identifies the internal codepath a request is dispatched to.
type Endpoint uint8

const (
	// EndpointConfig reads running configuration.
	EndpointConfig Endpoint = 0x01
	// EndpointStatus reads runtime status and counters.
	EndpointStatus Endpoint = 0x02
)

// Header is the fixed 6-byte prefix of every RPC datagram, request or reply.
type Header struct {
	Version  uint16
	Length   uint16
	Endpoint Endpoint
	Tag      uint8
}

// Marshal encodes the header into the first HeaderSize bytes of dst.
func (h Header) Marshal(dst []byte) {
	binary.LittleEndian.PutUint16(dst[0:2], h.Version)
	binary.LittleEndian.PutUint16(dst[2:4], h.Length)
	dst[4] = byte(h.Endpoint)
	dst[5] = h.Tag
}

// Unmarshal decodes a header from the first HeaderSize bytes of buf.
func (h *Header) Unmarshal(buf []byte) {
	h.Version = binary.LittleEndian.Uint16(buf[0:2])
	h.Length = binary.LittleEndian.Uint16(buf[2:4])
	h.Endpoint = Endpoint(buf[4])
	h.Tag = buf[5]
}

// ParseRequest validates and splits a raw datagram into its header and payload.
func ParseRequest(buf []byte) (Header, []byte, error) {
	if len(buf) < HeaderSize {
		return Header{}, nil, radioerr.ProtocolViolation(errShortHeader)
	}

	var h Header
	h.Unmarshal(buf)

	if h.Version != CurrentVersion {
		return Header{}, nil, radioerr.ProtocolViolation(errBadVersion)
	}
	if int(h.Length) < HeaderSize || int(h.Length) > len(buf) {
		return Header{}, nil, radioerr.ProtocolViolation(errBadLength)
	}

	return h, buf[HeaderSize:h.Length], nil
}

// EncodeReply builds a reply datagram: the header (with Version/Length filled in,
// Endpoint/Tag copied from req) followed by payload.
func EncodeReply(req Header, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	hdr := Header{
		Version:  CurrentVersion,
		Length:   uint16(HeaderSize + len(payload)),
		Endpoint: req.Endpoint,
		Tag:      req.Tag,
	}
	hdr.Marshal(buf)
	copy(buf[HeaderSize:], payload)
	return buf
}
