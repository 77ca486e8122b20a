// Command blazectl is a small administrative client for coordinatord's local RPC
// socket: it issues a single Config or Status "get" request and prints the decoded
// reply, for use from shell scripts and interactive debugging.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sys/unix"

	"github.com/blazemesh/coordinatord/internal/rpc"
)

func main() {
	socketPath := flag.String("socket", "/var/run/coordinatord.sock", "path to the coordinatord RPC socket")
	endpoint := flag.String("endpoint", "config", "endpoint to query: config or status")
	get := flag.String("get", "radio", "the `get` key to request")
	flag.Parse()

	if err := run(*socketPath, *endpoint, *get); err != nil {
		fmt.Fprintf(os.Stderr, "blazectl: %v\n", err)
		os.Exit(1)
	}
}

func run(socketPath, endpointName, key string) error {
	var endpoint rpc.Endpoint
	switch endpointName {
	case "config":
		endpoint = rpc.EndpointConfig
	case "status":
		endpoint = rpc.EndpointStatus
	default:
		return fmt.Errorf("unknown endpoint %q (want config or status)", endpointName)
	}

	reply, err := query(socketPath, endpoint, key)
	if err != nil {
		return err
	}

	var decoded map[string]interface{}
	if err := cbor.Unmarshal(reply, &decoded); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}

	out, err := json.MarshalIndent(decoded, "", "  ")
	if err != nil {
		return fmt.Errorf("format reply: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// query dials socketPath, sends a single request datagram, and returns the decoded
// reply payload.
func query(socketPath string, endpoint rpc.Endpoint, key string) ([]byte, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		return nil, fmt.Errorf("create socket: %w", err)
	}
	defer unix.Close(fd)

	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: socketPath}); err != nil {
		return nil, fmt.Errorf("connect %q: %w", socketPath, err)
	}

	payload, err := cbor.Marshal(map[string]string{"get": key})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	hdr := rpc.Header{
		Version:  rpc.CurrentVersion,
		Length:   uint16(rpc.HeaderSize + len(payload)),
		Endpoint: endpoint,
		Tag:      1,
	}
	buf := make([]byte, rpc.HeaderSize+len(payload))
	hdr.Marshal(buf)
	copy(buf[rpc.HeaderSize:], payload)

	if err := unix.Send(fd, buf, 0); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	respBuf := make([]byte, rpc.MaxPacketSize)
	n, _, err := unix.Recvfrom(fd, respBuf, 0)
	if err != nil {
		return nil, fmt.Errorf("receive reply: %w", err)
	}

	_, reply, err := rpc.ParseRequest(respBuf[:n])
	if err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}
	return reply, nil
}
