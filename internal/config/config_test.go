package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[confd]
socketPath = "/run/confd.sock"

[radio.transport]
file = "/dev/spidev0.0"
freq = 4000000
mode = 0
irq = "gpiochip0:17"
reset = "gpiochip0:18"

[radio.region]
country = "US"

[radio.general]
pollInterval = 0
irqWatchdogInterval = 50

[network.addresses]
mine = 1

[rpc]
socketPath = "/run/coordinatord.sock"

[logging]
level = "info"
`

func writeTemp(t *testing.T, contents string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "coordinatord.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestReadValidConfig(t *testing.T) {
	path := writeTemp(t, sampleConfig)

	cfg, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/spidev0.0", cfg.Radio.Transport.File)
	assert.Equal(t, uint32(4000000), cfg.Radio.Transport.Freq)
	assert.Equal(t, "gpiochip0:17", cfg.Radio.Transport.IRQ)
	assert.Equal(t, "US", cfg.Radio.Region.Country)
	assert.Equal(t, uint16(1), cfg.Network.Addresses.Mine)
	assert.Equal(t, "/run/coordinatord.sock", cfg.RPC.SocketPath)
}

func TestReadMissingTransportFile(t *testing.T) {
	path := writeTemp(t, `
[radio.transport]
irq = "gpiochip0:17"

[rpc]
socketPath = "/run/coordinatord.sock"
`)

	_, err := Read(path)
	assert.Error(t, err)
}

func TestReadInvalidMode(t *testing.T) {
	path := writeTemp(t, `
[radio.transport]
file = "/dev/spidev0.0"
irq = "gpiochip0:17"
mode = 7

[rpc]
socketPath = "/run/coordinatord.sock"
`)

	_, err := Read(path)
	assert.Error(t, err)
}

func TestReadMissingRegionCountry(t *testing.T) {
	path := writeTemp(t, `
[radio.transport]
file = "/dev/spidev0.0"
irq = "gpiochip0:17"

[rpc]
socketPath = "/run/coordinatord.sock"
`)

	_, err := Read(path)
	assert.Error(t, err)
}

func TestReadMissingFileReturnsError(t *testing.T) {
	_, err := Read("/nonexistent/path/coordinatord.toml")
	assert.Error(t, err)
}
