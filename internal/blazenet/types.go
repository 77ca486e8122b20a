// Package blazenet defines the small set of over-the-air header layouts shared
// between the PHY, MAC, and beacon framing logic. These mirror the structures that,
// in the original implementation, live in an external "BlazeNet/Types" shared
// library; here they are reproduced narrowly, to the extent the coordinator's beacon
// framing needs them.
package blazenet

import "encoding/binary"

// ProtocolVersion is the current BlazeNet beacon header version.
const ProtocolVersion uint8 = 1

// BroadcastAddress is the reserved MAC short address meaning "all nodes".
const BroadcastAddress uint16 = 0xFFFF

// MacHeaderFlags holds the single-byte flags field of a MAC header.
type MacHeaderFlags uint8

// EndpointNetControl marks a frame as addressed to the network-control endpoint,
// used for beacons and other management traffic.
const EndpointNetControl MacHeaderFlags = 0x01

// MacHeaderSize is the encoded size of MacHeader, in bytes.
const MacHeaderSize = 6

// MacHeader is the fixed-layout MAC header prepended to every over-the-air frame
// after the PHY length byte.
type MacHeader struct {
	Flags       MacHeaderFlags
	Sequence    uint8
	Source      uint16
	Destination uint16
}

// Encode writes the MAC header in little-endian, packed layout into dst, which must
// be at least MacHeaderSize bytes long.
func (h MacHeader) Encode(dst []byte) {
	dst[0] = byte(h.Flags)
	dst[1] = h.Sequence
	binary.LittleEndian.PutUint16(dst[2:4], h.Source)
	binary.LittleEndian.PutUint16(dst[4:6], h.Destination)
}

// BeaconHeaderFlags holds the single-byte flags field of a beacon header.
type BeaconHeaderFlags uint8

// PairingEnable indicates that over-the-air pairing of new devices is permitted.
const PairingEnable BeaconHeaderFlags = 0x01

// NetworkIDSize is the length, in bytes, of a beacon's network identifier.
const NetworkIDSize = 16

// BeaconHeaderSize is the encoded size of BeaconHeader, in bytes.
const BeaconHeaderSize = 1 + 1 + NetworkIDSize + 2

// BeaconHeader is the fixed-layout header that follows the MAC header in a beacon
// frame. It carries two reserved padding bytes, matching the shared layout's
// alignment padding after the network identifier.
type BeaconHeader struct {
	Version  uint8
	Flags    BeaconHeaderFlags
	NetworkID [NetworkIDSize]byte
}

// Encode writes the beacon header into dst, which must be at least
// BeaconHeaderSize bytes long. The trailing two reserved bytes are zeroed.
func (h BeaconHeader) Encode(dst []byte) {
	dst[0] = h.Version
	dst[1] = byte(h.Flags)
	copy(dst[2:2+NetworkIDSize], h.NetworkID[:])
	dst[2+NetworkIDSize] = 0
	dst[2+NetworkIDSize+1] = 0
}
