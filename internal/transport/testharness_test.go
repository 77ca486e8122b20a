package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blazemesh/coordinatord/internal/command"
)

type fakeResponder struct {
	readErr  error
	writeErr error
	fill     byte
}

func (f *fakeResponder) OnRead(cmd command.ID, out []byte) error {
	if f.readErr != nil {
		return f.readErr
	}
	for i := range out {
		out[i] = f.fill
	}
	return nil
}

func (f *fakeResponder) OnWrite(cmd command.ID, payload []byte) error {
	return f.writeErr
}

func TestHarnessSendReadFillsBuffer(t *testing.T) {
	h := NewHarness()
	h.SetResponder(&fakeResponder{fill: 0x42})

	out := make([]byte, 4)
	require.NoError(t, h.SendRead(command.GetInfo, out))
	assert.Equal(t, []byte{0x42, 0x42, 0x42, 0x42}, out)
}

func TestHarnessSendWriteWithoutResponderFails(t *testing.T) {
	h := NewHarness()
	err := h.SendWrite(command.RadioConfig, []byte{0x01})
	assert.Error(t, err)
}

func TestHarnessFireIRQInvokesAllHandlers(t *testing.T) {
	h := NewHarness()

	var calls int
	h.OnIRQ(func() { calls++ })
	h.OnIRQ(func() { calls++ })

	h.FireIRQ()
	h.FireIRQ()

	assert.Equal(t, 4, calls)
}

func TestHarnessLogRecordsCalls(t *testing.T) {
	h := NewHarness()
	h.SetResponder(&fakeResponder{})

	require.NoError(t, h.Reset())
	require.NoError(t, h.SendWrite(command.RadioConfig, []byte{0xAA}))

	require.Len(t, h.Log, 2)
	assert.Equal(t, "reset", h.Log[0].Op)
	assert.Equal(t, "write", h.Log[1].Op)
	assert.Equal(t, command.RadioConfig, h.Log[1].Command)
	assert.Equal(t, []byte{0xAA}, h.Log[1].Payload)
}

func TestParseGpio(t *testing.T) {
	chip, pin, err := ParseGpio("gpiochip0:17")
	require.NoError(t, err)
	assert.Equal(t, "gpiochip0", chip)
	assert.Equal(t, 17, pin)

	_, _, err = ParseGpio("not-a-descriptor")
	assert.Error(t, err)
}
