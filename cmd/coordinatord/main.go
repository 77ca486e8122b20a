// Command coordinatord is the radio coordinator daemon: it owns the SPI-attached
// coprocessor, maintains the beacon it broadcasts, and exposes its state and control
// surface to other processes on the host over a local RPC socket.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/blazemesh/coordinatord/internal/config"
	"github.com/blazemesh/coordinatord/internal/confd"
	"github.com/blazemesh/coordinatord/internal/logging"
	"github.com/blazemesh/coordinatord/internal/protocol"
	"github.com/blazemesh/coordinatord/internal/radio"
	"github.com/blazemesh/coordinatord/internal/rpc"
	"github.com/blazemesh/coordinatord/internal/runloop"
	"github.com/blazemesh/coordinatord/internal/transport"
	"github.com/blazemesh/coordinatord/internal/watchdog"
)

func main() {
	configPath := flag.String("config", "", "path to the daemon's TOML config file")
	logLevel := flag.String("log-level", "", "log severity (debug, info, warn, error)")
	logSimple := flag.Bool("log-simple", false, "omit timestamps (for systemd/syslog capture)")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "coordinatord: -config is required")
		os.Exit(1)
	}

	if err := run(*configPath, *logLevel, *logSimple); err != nil {
		fmt.Fprintf(os.Stderr, "coordinatord: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, logLevelFlag string, logSimple bool) error {
	cfg, err := config.Read(configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	level := logLevelFlag
	if level == "" {
		level = cfg.Logging.Level
	}
	log, err := logging.New(level, logSimple)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer log.Sync()

	log.Info("starting coordinatord", zap.String("version", version), zap.String("build", buildHash))

	confdClient, err := confd.Dial(cfg.Confd.SocketPath)
	if err != nil {
		return fmt.Errorf("dial confd: %w", err)
	}
	defer confdClient.Close()

	sp, err := transport.OpenSpidev(transport.SpidevConfig{
		File:  cfg.Radio.Transport.File,
		Freq:  cfg.Radio.Transport.Freq,
		Mode:  cfg.Radio.Transport.Mode,
		IRQ:   cfg.Radio.Transport.IRQ,
		Reset: cfg.Radio.Transport.Reset,
	}, log)
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}
	defer sp.Close()

	loop := runloop.New()

	r, err := radio.New(sp, loop, log, radio.Options{
		PollInterval:        time.Duration(cfg.Radio.General.PollIntervalMsec) * time.Millisecond,
		IrqWatchdogInterval: time.Duration(cfg.Radio.General.IrqWatchdogIntervalMsec) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("init radio: %w", err)
	}

	handler, err := protocol.New(r, confdClient, log)
	if err != nil {
		r.Close()
		return fmt.Errorf("init protocol handler: %w", err)
	}

	rpcServer, err := rpc.New(cfg.RPC.SocketPath, rpcBackend{handler: handler}, loop, log)
	if err != nil {
		handler.Close()
		r.Close()
		return fmt.Errorf("init rpc server: %w", err)
	}

	wdog, err := watchdog.Start(loop, log)
	if err != nil {
		log.Warn("watchdog init failed", zap.Error(err))
	}

	sigCh, stopSignals := loop.WatchSignals(unix.SIGINT, unix.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn("received signal, shutting down", zap.String("signal", sig.String()))
		loop.Interrupt()
	}()

	loop.Run(context.Background())
	stopSignals()

	log.Debug("shutting down")
	wdog.Stop()
	rpcServer.Close()
	handler.Close()
	r.Close()

	return nil
}
