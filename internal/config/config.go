// Package config loads cmd/meshnode's configuration from the environment
// (§4.16), using the same environment-first idiom the wider example pack
// reaches for pairing github.com/spf13/cobra with
// github.com/sethvargo/go-envconfig (other_examples/telepresenceio's
// go.mod pairs the same two libraries for a CLI's config layer). Neither
// library appears in the teacher repo itself, which ships as a library
// with no cmd/ of its own.
package config

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/sethvargo/go-envconfig"

	"github.com/kabili207/espmesh-go/core/address"
)

// RadioMode selects which radio.Driver cmd/meshnode constructs.
type RadioMode string

const (
	// RadioModeLoopback runs every simulated node in this one process,
	// sharing an in-process radio/loopback.Medium. Only useful when
	// meshnode is itself driving a multi-node scenario, not for a
	// single real node.
	RadioModeLoopback RadioMode = "loopback"

	// RadioModeFSRelay simulates a multi-node mesh across separate OS
	// processes on the same machine, rendezvousing through a shared
	// directory via radio/fsrelay. This is the default: it is the only
	// mode that makes sense when meshnode is invoked once per node.
	RadioModeFSRelay RadioMode = "fsrelay"
)

// Config is meshnode's full configuration, populated from environment
// variables prefixed MESHNODE_ (e.g. MESHNODE_SELF_ADDR).
type Config struct {
	// SelfAddr is this node's link-layer address, required.
	SelfAddr string `env:"MESHNODE_SELF_ADDR,required"`

	// StorePath is the file backing the persistent path cache. Empty
	// uses an in-memory store instead (no durability across restarts).
	StorePath string `env:"MESHNODE_STORE_PATH"`

	// IdentitySeedHex is this node's persisted Ed25519 seed, hex
	// encoded. Empty generates a fresh, unpersisted identity at
	// startup.
	IdentitySeedHex string `env:"MESHNODE_IDENTITY_SEED"`

	// RadioMode selects the radio.Driver implementation. Defaults to
	// RadioModeFSRelay.
	RadioMode RadioMode `env:"MESHNODE_RADIO_MODE,default=fsrelay"`

	// RelayDir is the shared rendezvous directory used by
	// RadioModeFSRelay.
	RelayDir string `env:"MESHNODE_RELAY_DIR,default=/tmp/espmesh-relay"`

	// TickIntervalMs, in milliseconds, overrides mesh.DefaultTickInterval
	// when non-zero.
	TickIntervalMs int `env:"MESHNODE_TICK_INTERVAL_MS"`

	// MQTTBroker, when non-empty, starts the gateway/mqtt Gateway
	// against this broker URL.
	MQTTBroker   string `env:"MESHNODE_MQTT_BROKER"`
	MQTTUsername string `env:"MESHNODE_MQTT_USERNAME"`
	MQTTPassword string `env:"MESHNODE_MQTT_PASSWORD"`
	MQTTUseTLS   bool   `env:"MESHNODE_MQTT_USE_TLS"`

	// SerialPort, when non-empty, starts the gateway/serial Gateway
	// against this port.
	SerialPort     string `env:"MESHNODE_SERIAL_PORT"`
	SerialBaudRate int    `env:"MESHNODE_SERIAL_BAUD_RATE"`

	// LogLevel is one of debug/info/warn/error.
	LogLevel string `env:"MESHNODE_LOG_LEVEL,default=info"`
}

// Load reads Config from the process environment.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: processing environment: %w", err)
	}
	return &cfg, nil
}

// Address parses SelfAddr.
func (c *Config) Address() (address.Address, error) {
	return address.Parse(c.SelfAddr)
}

// IdentitySeed decodes IdentitySeedHex, if set.
func (c *Config) IdentitySeed() ([]byte, error) {
	if c.IdentitySeedHex == "" {
		return nil, nil
	}
	seed, err := hex.DecodeString(c.IdentitySeedHex)
	if err != nil {
		return nil, fmt.Errorf("config: decoding identity seed: %w", err)
	}
	return seed, nil
}
