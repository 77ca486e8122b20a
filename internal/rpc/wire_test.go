package rpc

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Version: CurrentVersion, Length: 42, Endpoint: EndpointStatus, Tag: 7}
	buf := make([]byte, HeaderSize)
	h.Marshal(buf)

	var out Header
	out.Unmarshal(buf)
	assert.Equal(t, h, out)
}

func TestParseRequestRejectsShortBuffer(t *testing.T) {
	_, _, err := ParseRequest([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestParseRequestRejectsBadVersion(t *testing.T) {
	hdr := Header{Version: 0x0200, Length: HeaderSize, Endpoint: EndpointConfig}
	buf := make([]byte, HeaderSize)
	hdr.Marshal(buf)

	_, _, err := ParseRequest(buf)
	assert.Error(t, err)
}

func TestParseRequestRejectsBadLength(t *testing.T) {
	hdr := Header{Version: CurrentVersion, Length: 9999, Endpoint: EndpointConfig}
	buf := make([]byte, HeaderSize)
	hdr.Marshal(buf)

	_, _, err := ParseRequest(buf)
	assert.Error(t, err)
}

func TestParseRequestExtractsPayload(t *testing.T) {
	payload := []byte{0xAA, 0xBB, 0xCC}
	hdr := Header{Version: CurrentVersion, Length: uint16(HeaderSize + len(payload)), Endpoint: EndpointConfig, Tag: 3}
	buf := make([]byte, HeaderSize+len(payload))
	hdr.Marshal(buf)
	copy(buf[HeaderSize:], payload)

	gotHdr, gotPayload, err := ParseRequest(buf)
	require.NoError(t, err)
	assert.Equal(t, hdr, gotHdr)
	assert.Equal(t, payload, gotPayload)
}

func TestEncodeReplyCopiesEndpointAndTag(t *testing.T) {
	req := Header{Version: CurrentVersion, Length: HeaderSize, Endpoint: EndpointStatus, Tag: 9}
	buf := EncodeReply(req, []byte{1, 2})

	var hdr Header
	hdr.Unmarshal(buf)
	assert.Equal(t, EndpointStatus, hdr.Endpoint)
	assert.Equal(t, uint8(9), hdr.Tag)
	assert.Equal(t, uint16(HeaderSize+2), hdr.Length)
	assert.Equal(t, []byte{1, 2}, buf[HeaderSize:])
}

type fakeBackend struct{}

func (fakeBackend) RadioChannel() uint16      { return 11 }
func (fakeBackend) RadioTxPowerDbm() float64  { return 12.5 }
func (fakeBackend) RadioShortAddress() uint16 { return 0x1234 }
func (fakeBackend) RadioSerial() string       { return "SN0042" }
func (fakeBackend) RadioFWBuild() string      { return "1.2.3" }
func (fakeBackend) Version() string           { return "0.1.0" }
func (fakeBackend) BuildHash() string         { return "deadbeef" }

func (fakeBackend) RxCounters() CounterSet {
	return CounterSet{Good: 10, PrimaryError: 1, FIFOCounter: 2, QueueDiscards: 3}
}

func (fakeBackend) TxCounters() CounterSet {
	return CounterSet{Good: 20, PrimaryError: 4, FIFOCounter: 5, QueueDiscards: 6}
}

func TestHandleConfigRadio(t *testing.T) {
	payload, err := cbor.Marshal(map[string]string{"get": "radio"})
	require.NoError(t, err)

	reply, err := HandleConfig(fakeBackend{}, payload)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, cbor.Unmarshal(reply, &m))
	assert.Equal(t, "SN0042", m["sn"])
}

func TestHandleConfigUnknownKey(t *testing.T) {
	payload, _ := cbor.Marshal(map[string]string{"get": "bogus"})
	_, err := HandleConfig(fakeBackend{}, payload)
	assert.Error(t, err)
}

func TestHandleConfigMissingGet(t *testing.T) {
	payload, _ := cbor.Marshal(map[string]string{})
	_, err := HandleConfig(fakeBackend{}, payload)
	assert.Error(t, err)
}

func TestHandleStatusRadioCounters(t *testing.T) {
	payload, err := cbor.Marshal(map[string]string{"get": "radio.counters"})
	require.NoError(t, err)

	reply, err := HandleStatus(fakeBackend{}, payload)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, cbor.Unmarshal(reply, &m))
	assert.Contains(t, m, "rx")
	assert.Contains(t, m, "tx")
	assert.Contains(t, m, "readAt")
}
