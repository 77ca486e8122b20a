package radio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blazemesh/coordinatord/internal/command"
	"github.com/blazemesh/coordinatord/internal/runloop"
	"github.com/blazemesh/coordinatord/internal/transport"
)

// stubRadio answers every command with a fixed, successful response, and records
// every write it sees for assertions.
type stubRadio struct {
	cmdSuccess bool
	writes     []struct {
		cmd     command.ID
		payload []byte
	}
}

func newStubRadio() *stubRadio {
	return &stubRadio{cmdSuccess: true}
}

func (s *stubRadio) OnRead(cmd command.ID, out []byte) error {
	switch cmd {
	case command.GetInfo:
		resp := command.GetInfoResponse{
			Status:          1,
			ProtocolVersion: ProtocolVersion,
			Major:           1,
			HwRev:           1,
			MaxTxPower:      120,
		}
		copy(resp.Serial[:], "SN0001")
		copy(resp.EUI64[:], []byte{1, 2, 3, 4, 5, 6, 7, 8})
		buf := marshalGetInfo(resp)
		copy(out, buf)
	case command.GetStatus:
		var v byte
		if s.cmdSuccess {
			v |= 1
		}
		out[0] = v
	case command.GetPacketQueueStatus:
		out[0] = 0
		out[1] = 0
	case command.IrqStatus:
		out[0] = 0
	case command.GetCounters:
		// all zero
	}
	return nil
}

func (s *stubRadio) OnWrite(cmd command.ID, payload []byte) error {
	s.writes = append(s.writes, struct {
		cmd     command.ID
		payload []byte
	}{cmd, payload})
	return nil
}

func marshalGetInfo(resp command.GetInfoResponse) []byte {
	buf := make([]byte, command.GetInfoResponseSize)
	buf[0] = resp.Status
	buf[1] = resp.ProtocolVersion
	buf[2] = resp.Major
	buf[3] = resp.Minor
	copy(buf[4:12], resp.Build[:])
	buf[12] = resp.HwRev
	buf[13] = byte(resp.HwFeatures)
	copy(buf[14:30], resp.Serial[:])
	copy(buf[30:38], resp.EUI64[:])
	buf[38] = resp.MaxTxPower
	return buf
}

func newTestRadio(t *testing.T) (*Radio, *transport.Harness, *stubRadio) {
	h := transport.NewHarness()
	stub := newStubRadio()
	h.SetResponder(stub)

	loop := runloop.New()
	go loop.Run(context.Background())
	t.Cleanup(loop.Interrupt)

	r, err := New(h, loop, zap.NewNop(), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	return r, h, stub
}

func TestNewCapturesIdentity(t *testing.T) {
	r, _, _ := newTestRadio(t)

	info := r.Info()
	assert.Equal(t, "SN0001", info.Serial)
	assert.Equal(t, uint16(120), info.MaxTxPower)
}

func TestNewRejectsProtocolMismatch(t *testing.T) {
	h := transport.NewHarness()
	stub := newStubRadio()
	h.SetResponder(stub)

	// override GetInfo to report an incompatible protocol version
	h.SetResponder(&versionMismatchResponder{stubRadio: stub})

	loop := runloop.New()
	go loop.Run(context.Background())
	defer loop.Interrupt()

	_, err := New(h, loop, zap.NewNop(), Options{})
	assert.Error(t, err)
}

type versionMismatchResponder struct {
	*stubRadio
}

func (v *versionMismatchResponder) OnRead(cmd command.ID, out []byte) error {
	if cmd == command.GetInfo {
		resp := command.GetInfoResponse{Status: 1, ProtocolVersion: 0xFF}
		copy(out, marshalGetInfo(resp))
		return nil
	}
	return v.stubRadio.OnRead(cmd, out)
}

func TestUploadConfigSendsRadioConfig(t *testing.T) {
	r, _, stub := newTestRadio(t)

	r.SetChannel(11)
	r.SetTxPowerDeciDbm(300)
	r.SetShortAddress(0xBEEF)

	require.NoError(t, r.UploadConfig())

	var found bool
	for _, w := range stub.writes {
		if w.cmd == command.RadioConfig {
			found = true
			var req command.RadioConfigRequest
			req.Unmarshal(w.payload)
			assert.Equal(t, uint16(11), req.Channel)
			assert.Equal(t, uint16(300), req.TxPower)
			assert.Equal(t, uint16(0xBEEF), req.MyAddress)
		}
	}
	assert.True(t, found, "expected a RadioConfig write")
}

func TestQueueTransmitDirectWhenEmpty(t *testing.T) {
	r, _, stub := newTestRadio(t)

	require.NoError(t, r.QueueTransmit(PriorityRealTime, []byte{0xAA, 0xBB}))

	var found bool
	for _, w := range stub.writes {
		if w.cmd == command.TransmitPacket {
			found = true
			assert.Equal(t, byte(PriorityRealTime), w.payload[0])
			assert.Equal(t, []byte{0xAA, 0xBB}, w.payload[1:])
		}
	}
	assert.True(t, found, "expected a direct TransmitPacket write")
}

func TestSetBeaconConfigRejectsShortInterval(t *testing.T) {
	r, _, _ := newTestRadio(t)
	err := r.SetBeaconConfig(true, true, 10*time.Millisecond, nil)
	assert.Error(t, err)
}

func TestSetBeaconConfigAccepted(t *testing.T) {
	r, _, stub := newTestRadio(t)
	err := r.SetBeaconConfig(true, true, MinBeaconInterval, []byte{1, 2, 3})
	require.NoError(t, err)

	var found bool
	for _, w := range stub.writes {
		if w.cmd == command.BeaconConfig {
			found = true
		}
	}
	assert.True(t, found)
}

func TestIrqFiresReadsPendingPackets(t *testing.T) {
	var gotPayload []byte
	h := transport.NewHarness()
	stub := newStubRadio()
	h.SetResponder(stub)

	loop := runloop.New()
	go loop.Run(context.Background())
	defer loop.Interrupt()

	r, err := New(h, loop, zap.NewNop(), Options{
		OnPacket: func(rssi int8, lqi uint8, payload []byte) {
			gotPayload = append([]byte{}, payload...)
		},
	})
	require.NoError(t, err)
	defer r.Close()

	resp := &packetResponder{stubRadio: stub, pending: true, data: []byte{0xDE, 0xAD}}
	h.SetResponder(resp)

	h.FireIRQ()

	require.Eventually(t, func() bool { return gotPayload != nil }, time.Second, time.Millisecond)
	assert.Equal(t, []byte{0xDE, 0xAD}, gotPayload)
}

type packetResponder struct {
	*stubRadio
	pending bool
	data    []byte
}

func (p *packetResponder) OnRead(cmd command.ID, out []byte) error {
	switch cmd {
	case command.IrqStatus:
		out[0] = 0x02 // RxQueueNotEmpty
		return nil
	case command.GetPacketQueueStatus:
		if p.pending {
			out[0] = 0x01
			out[1] = byte(len(p.data))
		}
		return nil
	case command.ReadPacket:
		out[0] = 0  // RSSI
		out[1] = 50 // LQI
		copy(out[2:], p.data)
		p.pending = false
		return nil
	}
	return p.stubRadio.OnRead(cmd, out)
}
