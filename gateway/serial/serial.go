// Package serial exposes a mesh.Node's SendText/event stream to a host PC
// over a USB-serial link (§4.15), using the same RS232 magic/length/
// Fletcher-16-checksum framing the teacher lineage uses for its bridge
// protocol (core/codec.EncodeFrame/DecodeFrame), carrying small JSON
// command/event frames instead of raw mesh packets — the mesh packets
// themselves never leave the node over this link.
//
// Adapted from the teacher lineage's transport/serial.Transport: the same
// serial.Open/readLoop/frame-reassembly shape over go.bug.st/serial,
// repurposed from a packet-carrying transport.Transport implementation to
// a JSON command/event bridge with no transport.Transport interface to
// satisfy.
package serial

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/kabili207/espmesh-go/core/address"
	"github.com/kabili207/espmesh-go/core/codec"
	"github.com/kabili207/espmesh-go/mesh"
)

const (
	// DefaultBaudRate is the default baud rate for the host bridge link.
	DefaultBaudRate = 115200

	readBufSize = 1024
)

// Config holds the configuration for a Gateway.
type Config struct {
	// Port is the serial port path (e.g., "/dev/ttyUSB0" or "COM3").
	Port string
	// BaudRate is the serial baud rate. Defaults to DefaultBaudRate.
	BaudRate int
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// commandMessage is the JSON body of an inbound "send" frame.
type commandMessage struct {
	Dst  string `json:"dst"`
	Text string `json:"text"`
}

// eventMessage is the JSON body of an outbound event frame, mirroring
// gateway/mqtt's wire shape for consistency across gateways.
type eventMessage struct {
	Kind string   `json:"kind"`
	Src  string   `json:"src"`
	Dst  string   `json:"dst"`
	Text string   `json:"text,omitempty"`
	Hops []string `json:"hops,omitempty"`
}

// Gateway bridges a mesh.Node to a host PC over a serial link.
type Gateway struct {
	cfg  Config
	node *mesh.Node
	log  *slog.Logger

	mu        sync.RWMutex
	port      serial.Port
	connected bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a Gateway for node.
func New(cfg Config, node *mesh.Node) *Gateway {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gateway{cfg: cfg, node: node, log: cfg.Logger.WithGroup("serial_gateway")}
}

// Start opens the serial port, registers an event handler that frames and
// writes every session event to the link, and begins reading inbound send
// commands.
func (g *Gateway) Start(ctx context.Context) error {
	if g.cfg.Port == "" {
		return errors.New("serial gateway: port is required")
	}

	mode := &serial.Mode{BaudRate: g.cfg.BaudRate}
	port, err := serial.Open(g.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("serial gateway: opening port: %w", err)
	}

	g.mu.Lock()
	g.port = port
	g.connected = true
	g.done = make(chan struct{})
	g.mu.Unlock()

	readCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel

	g.node.RegisterEventHandler(g.publishEvent)
	go g.readLoop(readCtx)

	g.log.Info("connected to serial port", "port", g.cfg.Port, "baud", g.cfg.BaudRate)
	return nil
}

// Stop closes the serial port and waits for the read loop to exit.
func (g *Gateway) Stop() error {
	if g.cancel != nil {
		g.cancel()
	}

	g.mu.Lock()
	g.connected = false
	port := g.port
	g.port = nil
	done := g.done
	g.mu.Unlock()

	var err error
	if port != nil {
		err = port.Close()
	}
	if done != nil {
		<-done
	}
	return err
}

// IsConnected reports whether the serial port is open.
func (g *Gateway) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

func (g *Gateway) publishEvent(ev mesh.Event) {
	msg := eventMessage{Kind: ev.Kind.String(), Src: ev.Src.String(), Dst: ev.Dst.String(), Text: ev.Text}
	if len(ev.Hops) > 0 {
		msg.Hops = make([]string, len(ev.Hops))
		for i, h := range ev.Hops {
			msg.Hops[i] = h.String()
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		g.log.Warn("failed to marshal event", "error", err)
		return
	}
	frame, err := codec.EncodeFrame(payload)
	if err != nil {
		g.log.Warn("failed to frame event", "error", err)
		return
	}

	g.mu.RLock()
	port := g.port
	connected := g.connected
	g.mu.RUnlock()
	if !connected || port == nil {
		return
	}
	if _, err := port.Write(frame); err != nil {
		g.log.Warn("failed to write event frame", "error", err)
	}
}

func (g *Gateway) readLoop(ctx context.Context) {
	defer close(g.done)

	buf := make([]byte, readBufSize)
	var assembly []byte

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := g.port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				g.handleDisconnect(err)
				return
			}
			g.log.Error("serial read error", "error", err)
			g.handleDisconnect(err)
			return
		}
		if n == 0 {
			continue
		}

		assembly = append(assembly, buf[:n]...)
		assembly = g.processFrames(assembly)
	}
}

// processFrames extracts complete frames from data and dispatches each as
// a send command, returning the unconsumed remainder.
func (g *Gateway) processFrames(data []byte) []byte {
	for {
		frame, remaining, err := codec.DecodeFrame(data)
		if err != nil {
			if errors.Is(err, codec.ErrIncompleteFrame) || errors.Is(err, codec.ErrFrameTooShort) {
				return data
			}
			if idx := findMagic(data[min(1, len(data)):]); idx >= 0 {
				data = data[min(1, len(data))+idx:]
				continue
			}
			return nil
		}
		data = remaining

		var cmd commandMessage
		if err := json.Unmarshal(frame.Payload, &cmd); err != nil {
			g.log.Debug("failed to parse command frame", "error", err)
			continue
		}
		g.dispatchCommand(cmd)
	}
}

func (g *Gateway) dispatchCommand(cmd commandMessage) {
	dst, err := address.Parse(cmd.Dst)
	if err != nil {
		g.log.Debug("send command has invalid destination", "dst", cmd.Dst, "error", err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := g.node.SendText(ctx, dst, cmd.Text); err != nil {
			g.log.Warn("host-triggered send failed", "dst", dst.String(), "error", err)
		}
	}()
}

func findMagic(data []byte) int {
	magic := [2]byte{byte(codec.BridgeFrameMagic >> 8), byte(codec.BridgeFrameMagic & 0xFF)}
	for i := 0; i+1 < len(data); i++ {
		if data[i] == magic[0] && data[i+1] == magic[1] {
			return i
		}
	}
	return -1
}

func (g *Gateway) handleDisconnect(err error) {
	g.mu.Lock()
	g.connected = false
	g.mu.Unlock()
	if err != nil {
		g.log.Error("serial gateway disconnected", "error", err)
	}
}
