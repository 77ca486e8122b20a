// Package config reads the static, file-backed configuration: the radio transport
// parameters, socket paths, and logging options that are fixed at process startup.
// The radio's channel, transmit power and coordinator address are not read from this
// file, nor from internal/confd; internal/radio holds them and applies them through
// its setters and UploadConfig. See spec.md §4.6 and its "out of scope" note on TOML
// parsing itself — this package is the thin typed layer this module needs on top of
// it.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/blazemesh/coordinatord/internal/radioerr"
)

// Config is the full contents of the static configuration file.
type Config struct {
	Confd   ConfdConfig   `toml:"confd"`
	Radio   RadioConfig   `toml:"radio"`
	Network NetworkConfig `toml:"network"`
	RPC     RPCConfig     `toml:"rpc"`
	Logging LoggingConfig `toml:"logging"`
}

// ConfdConfig names the confd daemon's socket.
type ConfdConfig struct {
	SocketPath string `toml:"socketPath"`
}

// RadioConfig is the `radio` table.
type RadioConfig struct {
	Transport TransportConfig `toml:"transport"`
	General   RadioGeneral    `toml:"general"`
	Region    RadioRegion     `toml:"region"`
}

// RadioRegion is the `radio.region` table. Country is validated but otherwise inert,
// matching original_source's own `ReadRadioRegion` (it logs the country and leaves a
// "set radio country" TODO rather than acting on it).
type RadioRegion struct {
	Country string `toml:"country"`
}

// TransportConfig is the `radio.transport` table, consumed by internal/transport.
type TransportConfig struct {
	File  string `toml:"file"`
	Freq  uint32 `toml:"freq"`
	Mode  uint8  `toml:"mode"`
	IRQ   string `toml:"irq"`
	Reset string `toml:"reset"`
}

// RadioGeneral is the `radio.general` table.
type RadioGeneral struct {
	// PollIntervalMsec, when nonzero, enables the status polling timer fallback.
	PollIntervalMsec uint32 `toml:"pollInterval"`
	// IrqWatchdogIntervalMsec overrides the default IRQ watchdog cadence.
	IrqWatchdogIntervalMsec uint32 `toml:"irqWatchdogInterval"`
}

// NetworkConfig is the `network` table.
type NetworkConfig struct {
	Addresses NetworkAddresses `toml:"addresses"`
	NetworkID string           `toml:"networkId"`
}

// NetworkAddresses is the `network.addresses` table.
type NetworkAddresses struct {
	// Mine is a coordinator short address read from the file; nothing in this
	// module applies it to the radio.
	Mine uint16 `toml:"mine"`
}

// RPCConfig is the `rpc` table.
type RPCConfig struct {
	SocketPath string `toml:"socketPath"`
}

// LoggingConfig is the `logging` table, consumed by internal/logging.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Read parses the TOML configuration file at path.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, radioerr.Config(errors.Wrapf(err, "read config file %q", path))
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, radioerr.Config(errors.Wrapf(err, "parse config file %q", path))
	}

	if cfg.Radio.Transport.File == "" {
		return nil, radioerr.Config(errors.New("missing `radio.transport.file`"))
	}
	if cfg.Radio.Transport.IRQ == "" {
		return nil, radioerr.Config(errors.New("missing `radio.transport.irq`"))
	}
	if cfg.Radio.Transport.Mode > 3 {
		return nil, radioerr.Config(errors.New("invalid `radio.transport.mode` (must be 0-3)"))
	}
	if cfg.Radio.Region.Country == "" {
		return nil, radioerr.Config(errors.New("missing or invalid `radio.region.country` key"))
	}
	if cfg.RPC.SocketPath == "" {
		return nil, radioerr.Config(errors.New("missing `rpc.socketPath`"))
	}

	return &cfg, nil
}
