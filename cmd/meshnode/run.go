package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kabili207/espmesh-go/core/identity"
	"github.com/kabili207/espmesh-go/gateway/mqtt"
	"github.com/kabili207/espmesh-go/gateway/serial"
	"github.com/kabili207/espmesh-go/internal/config"
	"github.com/kabili207/espmesh-go/mesh"
	"github.com/kabili207/espmesh-go/radio"
	"github.com/kabili207/espmesh-go/radio/fsrelay"
	"github.com/kabili207/espmesh-go/radio/loopback"
	"github.com/kabili207/espmesh-go/store"
	"github.com/kabili207/espmesh-go/store/filestore"
	"github.com/kabili207/espmesh-go/store/memstore"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start this node and block until an OS signal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runNode(ctx, cfg, logger)
		},
	}
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("meshnode: invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

// buildStore constructs the store.Store cfg asks for: file-backed when
// StorePath is set, otherwise in-memory with no durability across
// restarts.
func buildStore(cfg *config.Config) (store.Store, io.Closer, error) {
	if cfg.StorePath == "" {
		return memstore.New(store.Size), nil, nil
	}
	fs, err := filestore.Open(cfg.StorePath, store.Size)
	if err != nil {
		return nil, nil, fmt.Errorf("meshnode: opening store: %w", err)
	}
	return fs, fs, nil
}

// buildRadio constructs the radio.Driver cfg asks for and initializes it.
func buildRadio(cfg *config.Config, self [6]byte) (radio.Driver, io.Closer, error) {
	switch cfg.RadioMode {
	case config.RadioModeLoopback:
		medium := loopback.NewMedium()
		drv := loopback.New(self, medium)
		if err := drv.Init(); err != nil {
			return nil, nil, fmt.Errorf("meshnode: initializing loopback radio: %w", err)
		}
		return drv, nil, nil
	case config.RadioModeFSRelay, "":
		drv := fsrelay.New(self, cfg.RelayDir, 0)
		if err := drv.Init(); err != nil {
			return nil, nil, fmt.Errorf("meshnode: initializing fsrelay radio: %w", err)
		}
		return drv, drv, nil
	default:
		return nil, nil, fmt.Errorf("meshnode: unknown radio mode %q", cfg.RadioMode)
	}
}

// buildIdentity loads a persisted identity from cfg's seed, or generates a
// fresh, unpersisted one if none was configured.
func buildIdentity(cfg *config.Config) (*identity.KeyPair, error) {
	seed, err := cfg.IdentitySeed()
	if err != nil {
		return nil, err
	}
	if seed != nil {
		return identity.KeyPairFromSeed(seed)
	}
	return identity.GenerateKeyPair()
}

// buildGateways starts the MQTT and/or serial gateways cfg asks for.
func buildGateways(ctx context.Context, cfg *config.Config, node *mesh.Node, logger *slog.Logger) ([]io.Closer, error) {
	var closers []io.Closer

	if cfg.MQTTBroker != "" {
		self, err := cfg.Address()
		if err != nil {
			return closers, err
		}
		gw := mqtt.New(mqtt.Config{
			Broker:   cfg.MQTTBroker,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			UseTLS:   cfg.MQTTUseTLS,
			NodeAddr: self,
			Logger:   logger,
		}, node)
		if err := gw.Start(ctx); err != nil {
			return closers, fmt.Errorf("meshnode: starting mqtt gateway: %w", err)
		}
		closers = append(closers, stopperCloser{gw.Stop})
	}

	if cfg.SerialPort != "" {
		gw := serial.New(serial.Config{
			Port:     cfg.SerialPort,
			BaudRate: cfg.SerialBaudRate,
			Logger:   logger,
		}, node)
		if err := gw.Start(ctx); err != nil {
			return closers, fmt.Errorf("meshnode: starting serial gateway: %w", err)
		}
		closers = append(closers, stopperCloser{gw.Stop})
	}

	return closers, nil
}

type stopperCloser struct {
	stop func() error
}

func (s stopperCloser) Close() error { return s.stop() }

// runNode wires every component together and blocks on node.Run until ctx
// is cancelled.
func runNode(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	self, err := cfg.Address()
	if err != nil {
		return fmt.Errorf("meshnode: %w", err)
	}

	st, storeCloser, err := buildStore(cfg)
	if err != nil {
		return err
	}
	if storeCloser != nil {
		defer storeCloser.Close()
	}

	drv, radioCloser, err := buildRadio(cfg, self)
	if err != nil {
		return err
	}
	if radioCloser != nil {
		defer radioCloser.Close()
	}

	ident, err := buildIdentity(cfg)
	if err != nil {
		return fmt.Errorf("meshnode: building identity: %w", err)
	}

	nodeCfg := mesh.Config{
		Self:      self,
		Radio:     drv,
		PathStore: st,
		Identity:  ident,
		Logger:    logger,
	}
	if cfg.TickIntervalMs > 0 {
		nodeCfg.TickInterval = time.Duration(cfg.TickIntervalMs) * time.Millisecond
	}
	node := mesh.New(nodeCfg)

	gatewayClosers, err := buildGateways(ctx, cfg, node, logger)
	for _, c := range gatewayClosers {
		defer c.Close()
	}
	if err != nil {
		return err
	}

	logger.Info("meshnode starting", "self", self.String(), "radio_mode", cfg.RadioMode)
	err = node.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
