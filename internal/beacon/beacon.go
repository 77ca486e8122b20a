// Package beacon owns the radio's automatic beacon frame: its configuration (read
// from the runtime config daemon), the frame bytes themselves, and keeping the radio
// in sync with both, per spec.md §4.3.
package beacon

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/blazemesh/coordinatord/internal/blazenet"
	"github.com/blazemesh/coordinatord/internal/confd"
	"github.com/blazemesh/coordinatord/internal/radio"
	"github.com/blazemesh/coordinatord/internal/radioerr"
)

const (
	confBeaconInterval = "radio.beacon.interval"
	confBeaconID       = "radio.beacon.id"

	defaultIntervalMsec = 5000
)

// Manager formats and keeps the radio's automatic beacon frame current. Closing it
// disables beaconing on the radio.
type Manager struct {
	log   *zap.Logger
	radio Radio

	confd confd.Reader

	interval            time.Duration
	networkID           [blazenet.NetworkIDSize]byte
	inBandPairingEnabled bool

	frame []byte
}

// Radio is the subset of *radio.Radio the beacon manager needs: enough to read the
// coordinator's address and to push beacon configuration changes.
type Radio interface {
	ShortAddress() uint16
	SetBeaconConfig(updateConfig, enabled bool, interval time.Duration, payload []byte) error
}

var _ Radio = (*radio.Radio)(nil)

// New reads the initial beacon configuration, builds the frame, and enables
// beaconing on the radio.
func New(r Radio, c confd.Reader, log *zap.Logger) (*Manager, error) {
	m := &Manager{log: log, radio: r, confd: c}

	if err := m.ReloadConfig(false); err != nil {
		return nil, err
	}

	m.updateFrame()
	if err := m.upload(true); err != nil {
		return nil, err
	}

	return m, nil
}

// Close disables automatic beacon transmission on the radio.
func (m *Manager) Close() error {
	return m.radio.SetBeaconConfig(true, false, m.interval, nil)
}

// ReloadConfig re-reads the beacon interval and network ID from confd. If upload is
// true, the (possibly unchanged) frame is re-pushed to the radio afterward.
func (m *Manager) ReloadConfig(upload bool) error {
	intervalMsec := int64(defaultIntervalMsec)
	if v, err := m.confd.GetInt(confBeaconInterval); err != nil {
		return err
	} else if v != nil {
		intervalMsec = *v
	}

	if intervalMsec < radio.MinBeaconInterval.Milliseconds() {
		return radioerr.Config(fmt.Errorf("invalid beacon interval: %d (min %d)",
			intervalMsec, radio.MinBeaconInterval.Milliseconds()))
	}

	// round up to the nearest 10ms, matching the original's tick resolution
	rounded := int64(math.Ceil(float64(intervalMsec)/10.0) * 10.0)
	m.interval = time.Duration(rounded) * time.Millisecond

	var id [blazenet.NetworkIDSize]byte
	n, err := m.confd.GetBlob(confBeaconID, id[:])
	if err != nil {
		return err
	}
	if n != len(id) {
		return radioerr.Config(fmt.Errorf("failed to read network id (%q): got %d bytes",
			confBeaconID, n))
	}
	m.networkID = id
	m.updateFrame()

	if upload {
		return m.upload(true)
	}
	return nil
}

// updateFrame rebuilds the beacon frame bytes from the current configuration.
func (m *Manager) updateFrame() {
	size := 1 + blazenet.MacHeaderSize + blazenet.BeaconHeaderSize
	buf := make([]byte, size)

	mac := blazenet.MacHeader{
		Flags:       blazenet.EndpointNetControl,
		Sequence:    0,
		Source:      m.radio.ShortAddress(),
		Destination: blazenet.BroadcastAddress,
	}
	mac.Encode(buf[1:])

	beaconHdr := blazenet.BeaconHeader{Version: blazenet.ProtocolVersion}
	if m.inBandPairingEnabled {
		beaconHdr.Flags |= blazenet.PairingEnable
	}
	beaconHdr.NetworkID = m.networkID
	beaconHdr.Encode(buf[1+blazenet.MacHeaderSize:])

	buf[0] = byte(size - 1)

	m.frame = buf
	m.log.Debug("beacon frame updated", zap.Int("size", size), zap.Binary("frame", buf))
}

// upload pushes the current interval, enable state, and (if frameChanged) the frame
// bytes to the radio.
func (m *Manager) upload(frameChanged bool) error {
	if frameChanged {
		return m.radio.SetBeaconConfig(true, true, m.interval, m.frame)
	}
	return m.radio.SetBeaconConfig(true, true, m.interval, nil)
}

// Frame returns a copy of the currently configured beacon frame bytes, for
// inspection by tests and the RPC status endpoint.
func (m *Manager) Frame() []byte {
	return append([]byte{}, m.frame...)
}

// Interval returns the currently configured beacon interval.
func (m *Manager) Interval() time.Duration {
	return m.interval
}
