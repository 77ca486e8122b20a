package beacon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blazemesh/coordinatord/internal/blazenet"
)

type fakeRadio struct {
	addr     uint16
	enabled  bool
	interval time.Duration
	frame    []byte
}

func (f *fakeRadio) ShortAddress() uint16 { return f.addr }

func (f *fakeRadio) SetBeaconConfig(updateConfig, enabled bool, interval time.Duration, payload []byte) error {
	if updateConfig {
		f.enabled = enabled
		f.interval = interval
	}
	if payload != nil {
		f.frame = append([]byte{}, payload...)
	}
	return nil
}

type fakeConfd struct {
	ints  map[string]int64
	blobs map[string][]byte
}

func (f *fakeConfd) GetInt(key string) (*int64, error) {
	if v, ok := f.ints[key]; ok {
		return &v, nil
	}
	return nil, nil
}

func (f *fakeConfd) GetReal(key string) (*float64, error) { return nil, nil }

func (f *fakeConfd) GetBlob(key string, out []byte) (int, error) {
	if v, ok := f.blobs[key]; ok {
		return copy(out, v), nil
	}
	return 0, nil
}

func newFixtures() (*fakeRadio, *fakeConfd) {
	id := make([]byte, blazenet.NetworkIDSize)
	for i := range id {
		id[i] = byte(i)
	}
	return &fakeRadio{addr: 0x1234}, &fakeConfd{
		ints:  map[string]int64{confBeaconInterval: 2000},
		blobs: map[string][]byte{confBeaconID: id},
	}
}

func TestNewBuildsAndUploadsFrame(t *testing.T) {
	r, c := newFixtures()

	m, err := New(r, c, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, r.enabled)
	assert.Equal(t, 2000*time.Millisecond, r.interval)
	require.NotNil(t, r.frame)

	expectedSize := 1 + blazenet.MacHeaderSize + blazenet.BeaconHeaderSize
	require.Len(t, r.frame, expectedSize)
	assert.Equal(t, byte(expectedSize-1), r.frame[0])

	// MAC source address, little-endian, after the PHY length byte and the MAC
	// header's flags and sequence bytes
	source := uint16(r.frame[3]) | uint16(r.frame[4])<<8
	assert.Equal(t, r.addr, source)

	assert.Equal(t, m.Frame(), r.frame)
}

func TestReloadConfigRejectsIntervalBelowMinimum(t *testing.T) {
	r, c := newFixtures()
	c.ints[confBeaconInterval] = 100

	_, err := New(r, c, zap.NewNop())
	assert.Error(t, err)
}

func TestReloadConfigRejectsWrongNetworkIDLength(t *testing.T) {
	r, c := newFixtures()
	c.blobs[confBeaconID] = []byte{1, 2, 3}

	_, err := New(r, c, zap.NewNop())
	assert.Error(t, err)
}

func TestCloseDisablesBeaconing(t *testing.T) {
	r, c := newFixtures()
	m, err := New(r, c, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, m.Close())
	assert.False(t, r.enabled)
}

func TestReloadConfigDefaultsIntervalWhenUnset(t *testing.T) {
	r, c := newFixtures()
	delete(c.ints, confBeaconInterval)

	m, err := New(r, c, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, defaultIntervalMsec*time.Millisecond, m.Interval())
}
