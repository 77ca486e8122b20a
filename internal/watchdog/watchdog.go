// Package watchdog pings the systemd service supervisor's liveness watchdog, so a
// hung run loop gets the process restarted instead of silently wedging, per
// spec.md's out-of-scope note on "process-supervisor watchdog pings" — this is the
// ambient client side of that external facility.
package watchdog

import (
	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"github.com/blazemesh/coordinatord/internal/runloop"
)

// Pinger periodically notifies systemd that the process is alive, at half of the
// interval systemd itself expects (WATCHDOG_USEC), matching go-systemd's own
// convention for headroom against scheduling jitter.
type Pinger struct {
	timer *runloop.Timer
}

// Start begins kicking the watchdog on loop, if WATCHDOG_USEC is set in the
// environment (i.e. the unit has `WatchdogSec=` configured). Returns a nil Pinger,
// with no error, when watchdog support is not enabled for this invocation.
func Start(loop *runloop.Loop, log *zap.Logger) (*Pinger, error) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return nil, err
	}
	if interval == 0 {
		log.Debug("systemd watchdog not enabled")
		return nil, nil
	}

	kickInterval := interval / 2
	log.Info("systemd watchdog enabled", zap.Duration("interval", kickInterval))

	p := &Pinger{}
	p.timer = loop.NewTimer(kickInterval, func() {
		if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
			log.Warn("watchdog kick failed", zap.Error(err))
		}
	})

	return p, nil
}

// Stop halts the periodic kick. Safe to call on a nil Pinger.
func (p *Pinger) Stop() {
	if p == nil || p.timer == nil {
		return
	}
	p.timer.Stop()
}
