package rpc

import "errors"

var (
	errShortHeader = errors.New("rpc: datagram shorter than header")
	errBadVersion  = errors.New("rpc: unsupported protocol version")
	errBadLength   = errors.New("rpc: length field out of range")
)
