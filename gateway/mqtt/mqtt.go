// Package mqtt publishes a mesh.Node's session-lifecycle telemetry to an
// MQTT broker and accepts remotely-triggered sends, for a fleet dashboard
// (§4.14). It carries no mesh packets itself — that's radio.Driver's job —
// only small JSON telemetry/control messages.
//
// Adapted from the teacher lineage's transport/mqtt.Transport: the same
// connect/reconnect/state-handler plumbing over
// github.com/eclipse/paho.mqtt.golang, repurposed from a packet-carrying
// transport.Transport implementation to a telemetry publisher with no
// transport.Transport interface to satisfy.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kabili207/espmesh-go/core/address"
	"github.com/kabili207/espmesh-go/mesh"
)

// DefaultTopicPrefix is the default MQTT topic prefix for node telemetry.
const DefaultTopicPrefix = "espmesh"

// Config holds the configuration for a Gateway.
type Config struct {
	// Broker is the MQTT broker URL (e.g., "tcp://broker.example.com:1883").
	Broker string
	// Username for MQTT authentication. Leave empty if not required.
	Username string
	// Password for MQTT authentication. Leave empty if not required.
	Password string
	// UseTLS enables TLS for the MQTT connection.
	UseTLS bool
	// ClientID is the MQTT client identifier. If empty, a random one is
	// generated.
	ClientID string
	// TopicPrefix is the MQTT topic prefix (default: DefaultTopicPrefix).
	TopicPrefix string
	// NodeAddr identifies the node whose events this gateway publishes and
	// whose sends it accepts, in the topics
	// "{TopicPrefix}/{NodeAddr}/events" and "{TopicPrefix}/{NodeAddr}/send".
	NodeAddr address.Address
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// sendRequest is the JSON body accepted on the .../send topic.
type sendRequest struct {
	Dst  string `json:"dst"`
	Text string `json:"text"`
}

// eventMessage is the JSON body published on the .../events topic.
type eventMessage struct {
	Kind string   `json:"kind"`
	Src  string   `json:"src"`
	Dst  string   `json:"dst"`
	Text string   `json:"text,omitempty"`
	Hops []string `json:"hops,omitempty"`
}

// Gateway publishes node to an MQTT broker and relays accepted sends back
// into it.
type Gateway struct {
	cfg  Config
	node *mesh.Node
	log  *slog.Logger

	mu        sync.RWMutex
	client    paho.Client
	connected bool
}

// New creates a Gateway for node.
func New(cfg Config, node *mesh.Node) *Gateway {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gateway{cfg: cfg, node: node, log: cfg.Logger.WithGroup("mqtt_gateway")}
}

// Start connects to the broker, subscribes to the send-command topic, and
// registers an event handler on the node that publishes every session
// event to the events topic.
func (g *Gateway) Start(ctx context.Context) error {
	if g.cfg.Broker == "" {
		return errors.New("mqtt gateway: broker URL is required")
	}

	clientID := g.cfg.ClientID
	if clientID == "" {
		clientID = "espmesh-" + randomString(16)
	}

	opts := paho.NewClientOptions().
		AddBroker(g.cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(2 * time.Minute).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetCleanSession(true).
		SetOrderMatters(false).
		SetOnConnectHandler(g.onConnected).
		SetConnectionLostHandler(g.onConnectionLost)

	if g.cfg.Username != "" {
		opts.SetUsername(g.cfg.Username)
	}
	if g.cfg.Password != "" {
		opts.SetPassword(g.cfg.Password)
	}
	if g.cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	g.mu.Lock()
	g.client = paho.NewClient(opts)
	client := g.client
	g.mu.Unlock()

	token := client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return errors.New("mqtt gateway: connection timeout")
	}
	if token.Error() != nil {
		return fmt.Errorf("mqtt gateway: connecting to broker: %w", token.Error())
	}

	g.node.RegisterEventHandler(g.publishEvent)

	go func() {
		<-ctx.Done()
		g.Stop()
	}()

	return nil
}

// Stop disconnects from the broker.
func (g *Gateway) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		g.client.Disconnect(1000)
		g.connected = false
	}
	return nil
}

// IsConnected reports whether the gateway is currently connected.
func (g *Gateway) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected && g.client != nil && g.client.IsConnected()
}

func (g *Gateway) eventsTopic() string {
	return g.cfg.TopicPrefix + "/" + g.cfg.NodeAddr.String() + "/events"
}

func (g *Gateway) sendTopic() string {
	return g.cfg.TopicPrefix + "/" + g.cfg.NodeAddr.String() + "/send"
}

func (g *Gateway) onConnected(client paho.Client) {
	g.mu.Lock()
	g.connected = true
	g.mu.Unlock()

	topic := g.sendTopic()
	client.Subscribe(topic, 1, g.handleSendCommand)
	g.log.Info("connected to MQTT broker", "broker", g.cfg.Broker, "send_topic", topic)
}

func (g *Gateway) onConnectionLost(_ paho.Client, err error) {
	g.mu.Lock()
	g.connected = false
	g.mu.Unlock()
	g.log.Error("MQTT connection lost", "error", err)
}

// publishEvent is registered as the node's event handler. It must not
// block (§4.9's Node.RegisterEventHandler contract), so the publish itself
// is fired off on its own goroutine.
func (g *Gateway) publishEvent(ev mesh.Event) {
	msg := eventMessage{
		Kind: ev.Kind.String(),
		Src:  ev.Src.String(),
		Dst:  ev.Dst.String(),
		Text: ev.Text,
	}
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

	g.mu.RLock()
	client := g.client
	g.mu.RUnlock()
	if client == nil {
		return
	}

	go client.Publish(g.eventsTopic(), 0, false, payload)
}

func (g *Gateway) handleSendCommand(_ paho.Client, message paho.Message) {
	var req sendRequest
	if err := json.Unmarshal(message.Payload(), &req); err != nil {
		g.log.Debug("failed to parse send command", "error", err)
		return
	}

	dst, err := address.Parse(req.Dst)
	if err != nil {
		g.log.Debug("send command has invalid destination", "dst", req.Dst, "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := g.node.SendText(ctx, dst, req.Text); err != nil {
			g.log.Warn("remote-triggered send failed", "dst", dst.String(), "error", err)
		}
	}()
}

func randomString(n int) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b)
}
