package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStatusResponseUnmarshal(t *testing.T) {
	cases := []struct {
		name string
		byte byte
		want GetStatusResponse
	}{
		{"zero", 0x00, GetStatusResponse{}},
		{"cmd success only", 0x01, GetStatusResponse{CmdSuccess: true}},
		{
			"all bits set", 0xFF,
			GetStatusResponse{
				CmdSuccess: true, RadioActive: true, RxQueueNotEmpty: true, RxQueueFull: true,
				RxQueueOverflow: true, TxQueueEmpty: true, TxQueueFull: true, TxQueueOverflow: true,
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var got GetStatusResponse
			got.Unmarshal([]byte{c.byte})
			assert.Equal(t, c.want, got)
		})
	}
}

func TestIrqBitsRoundTrip(t *testing.T) {
	in := IrqBits{CommandError: true, TxQueueEmpty: true}
	var out IrqBits
	out.Unmarshal([]byte{in.Marshal()})
	assert.Equal(t, in, out)
	assert.True(t, out.Any())

	var empty IrqBits
	assert.False(t, empty.Any())
}

func TestRadioConfigRequestRoundTrip(t *testing.T) {
	in := RadioConfigRequest{Channel: 0x0C, TxPower: 300, MyAddress: 0xBEEF}
	buf := in.Marshal()
	require.Len(t, buf, RadioConfigRequestSize)

	var out RadioConfigRequest
	out.Unmarshal(buf)
	assert.Equal(t, in, out)
}

func TestTransmitPacketRequestMarshal(t *testing.T) {
	req := TransmitPacketRequest{Priority: 2}
	buf := req.Marshal([]byte{0xDE, 0xAD})

	require.Len(t, buf, TransmitPacketHeaderSize+2)
	assert.Equal(t, byte(2), buf[0])
	assert.Equal(t, []byte{0xDE, 0xAD}, buf[1:])
}

func TestTransmitPacketRequestPriorityMasked(t *testing.T) {
	req := TransmitPacketRequest{Priority: 0xFF}
	buf := req.Marshal(nil)
	assert.Equal(t, byte(0x03), buf[0])
}

func TestBeaconConfigRequestMarshal(t *testing.T) {
	req := BeaconConfigRequest{UpdateConfig: true, Enabled: true, Interval: 1000}
	payload := []byte{0x01, 0x02, 0x03}
	buf := req.Marshal(payload)

	require.Len(t, buf, BeaconConfigRequestHeaderSize+len(payload))
	assert.Equal(t, byte(0x03), buf[0])
	assert.Equal(t, uint16(1000), uint16(buf[1])|uint16(buf[2])<<8)
	assert.Equal(t, payload, buf[3:])
}

func TestBeaconConfigRequestPayloadOnlyUpdate(t *testing.T) {
	req := BeaconConfigRequest{UpdateConfig: false, Enabled: true}
	buf := req.Marshal(nil)
	assert.Equal(t, byte(0x02), buf[0])
}

func TestGetCountersResponseUnmarshal(t *testing.T) {
	buf := make([]byte, GetCountersResponseSize)
	buf[0] = 0x01
	buf[56] = 0x02 // RxRadioFifoOverflows low byte

	var resp GetCountersResponse
	resp.Unmarshal(buf)

	assert.Equal(t, uint32(1), resp.CurrentTicks)
	assert.Equal(t, uint32(2), resp.RxRadioFifoOverflows)
}

func TestCommandIDString(t *testing.T) {
	assert.Equal(t, "GetInfo", GetInfo.String())
	assert.Equal(t, "Unknown", ID(0x7F).String())
}
