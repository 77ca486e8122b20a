// Package protocol is the composition root for the radio-facing half of the
// coordinator: it owns the Radio and the beacon Manager layered on top of it, and is
// the thing the RPC endpoints and cmd/coordinatord's main function talk to, per
// spec.md §4.3's handler/beaconator split.
package protocol

import (
	"time"

	"go.uber.org/zap"

	"github.com/blazemesh/coordinatord/internal/beacon"
	"github.com/blazemesh/coordinatord/internal/confd"
	"github.com/blazemesh/coordinatord/internal/radio"
)

// Handler owns a configured Radio and its beacon Manager. Closing it tears down
// beaconing before the caller goes on to close the Radio itself.
type Handler struct {
	log    *zap.Logger
	Radio  *radio.Radio
	Beacon *beacon.Manager
}

// New constructs the beacon manager on top of an already-initialized radio and
// performs the initial radio configuration upload.
func New(r *radio.Radio, c confd.Reader, log *zap.Logger) (*Handler, error) {
	if err := r.UploadConfig(); err != nil {
		return nil, err
	}

	b, err := beacon.New(r, c, log)
	if err != nil {
		return nil, err
	}

	return &Handler{log: log, Radio: r, Beacon: b}, nil
}

// Close disables beaconing. The caller is responsible for closing the underlying
// Radio and transport afterward, per spec.md §5's teardown ordering.
func (h *Handler) Close() error {
	return h.Beacon.Close()
}

// ReloadConfig re-reads the beacon's confd-backed configuration and, if upload is
// true, re-pushes it to the radio. The radio's channel, transmit power and short
// address are not re-read.
func (h *Handler) ReloadConfig(upload bool) error {
	return h.Beacon.ReloadConfig(upload)
}

// QueueTransmit submits a fully-framed packet for transmission at the given
// priority.
func (h *Handler) QueueTransmit(priority radio.Priority, payload []byte) error {
	return h.Radio.QueueTransmit(priority, payload)
}

// BeaconInterval returns the currently configured beacon interval.
func (h *Handler) BeaconInterval() time.Duration {
	return h.Beacon.Interval()
}
