// Package logging builds the process-wide zap.Logger: a colorized console encoder
// when standard error is a terminal, and structured JSON otherwise, matching the
// isatty-gated encoder selection the pack's own examples use for terminal output.
package logging

import (
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger at the given level ("debug", "info", "warn", "error"; empty
// defaults to "info"). When simple is true, timestamps are omitted from every line,
// matching the original's `--log-simple` flag for systemd/syslog capture (where the
// supervisor already stamps each line with a time).
func New(level string, simple bool) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, err
		}
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if simple {
		encoderCfg.TimeKey = ""
	}

	var encoder zapcore.Encoder
	if isatty.IsTerminal(os.Stderr.Fd()) {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), lvl)
	return zap.New(core), nil
}
