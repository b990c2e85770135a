package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal/config"
)

// MQTTEmitter publishes rate reports to the broker
type MQTTEmitter struct {
	cfg    config.MQTTConfig
	Client mqtt.Client // Exported for control plane

	connected atomic.Bool
	published atomic.Uint64
	errors    atomic.Uint64
	inflight  sync.WaitGroup
}

// NewMQTTEmitter creates a new MQTT emitter. Call Connect before Report.
func NewMQTTEmitter(cfg config.MQTTConfig) *MQTTEmitter {
	return &MQTTEmitter{cfg: cfg}
}

// newMQTTEmitterWithClient wires an already connected client.
func newMQTTEmitterWithClient(cfg config.MQTTConfig, client mqtt.Client) *MQTTEmitter {
	e := &MQTTEmitter{cfg: cfg, Client: client}
	e.connected.Store(client.IsConnected())
	return e
}

// brokerURL adds the tcp scheme when the address has none.
func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return fmt.Sprintf("tcp://%s", broker)
}

// Connect connects to the MQTT broker
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetOrderMatters(false)

	opts.OnConnect = func(c mqtt.Client) {
		e.connected.Store(true)
		slog.Info("mqtt connected", "broker", e.cfg.Broker)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.connected.Store(false)
		slog.Warn("mqtt connection lost", "error", err)
	}

	e.Client = mqtt.NewClient(opts)

	token := e.Client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt connect: %w", ctx.Err())
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	e.connected.Store(true)
	return nil
}

// Report implements internal.Reporter. It is called from the consumer
// goroutine, so the publish is not awaited; delivery failures are counted
// and logged when the token completes.
func (e *MQTTEmitter) Report(_ context.Context, report internal.RateReport) error {
	if e.Client == nil || !e.connected.Load() {
		e.errors.Add(1)
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := Encode(e.cfg.Encoding, NewEnvelope(report))
	if err != nil {
		e.errors.Add(1)
		return fmt.Errorf("encode report: %w", err)
	}

	token := e.Client.Publish(e.cfg.Topics.Reports, e.cfg.QoS, false, payload)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		if !token.WaitTimeout(2 * time.Second) {
			e.errors.Add(1)
			slog.Warn("mqtt publish timeout", "topic", e.cfg.Topics.Reports)
			return
		}
		if err := token.Error(); err != nil {
			e.errors.Add(1)
			slog.Warn("mqtt publish failed", "topic", e.cfg.Topics.Reports, "error", err)
			return
		}
		e.published.Add(1)
	}()
	return nil
}

// Disconnect waits for in-flight publishes and disconnects from the broker.
func (e *MQTTEmitter) Disconnect() {
	e.inflight.Wait()
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250)
	}
	e.connected.Store(false)
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	return Stats{
		Connected: e.connected.Load(),
		Published: e.published.Load(),
		Errors:    e.errors.Load(),
	}
}

// Stats holds emitter statistics
type Stats struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
}
