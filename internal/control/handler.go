// Package control is the MQTT control plane. Commands arrive on the control
// topic, are queued by the paho callback, and are applied to the session
// from the consumer goroutine when the handler is polled as an input source.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal/config"
)

// Command represents a control plane command
type Command struct {
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a command response
type Response struct {
	CommandAck string                 `json:"command_ack"`
	Status     string                 `json:"status"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Timestamp  string                 `json:"timestamp"`
}

// Handler handles control plane commands
type Handler struct {
	cfg      config.MQTTConfig
	client   mqtt.Client
	commands chan Command
	now      func() time.Time
}

// NewHandler creates a new control plane handler
func NewHandler(cfg config.MQTTConfig, client mqtt.Client) *Handler {
	return &Handler{
		cfg:      cfg,
		client:   client,
		commands: make(chan Command, 10),
		now:      time.Now,
	}
}

// ResponseTopic is where command responses are published.
func (h *Handler) ResponseTopic() string {
	return h.cfg.Topics.Control + "/response"
}

// Start subscribes to the control topic
func (h *Handler) Start(ctx context.Context) error {
	topic := h.cfg.Topics.Control
	slog.Info("subscribing to control plane", "topic", topic, "qos", h.cfg.QoS)

	token := h.client.Subscribe(topic, h.cfg.QoS, h.messageHandler)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("control plane subscription: %w", ctx.Err())
	case <-time.After(5 * time.Second):
		return fmt.Errorf("control plane subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control plane subscription failed: %w", err)
	}

	slog.Info("control plane handler started")
	return nil
}

// Stop unsubscribes. Queued commands are discarded.
func (h *Handler) Stop() error {
	if h.client != nil && h.client.IsConnected() {
		token := h.client.Unsubscribe(h.cfg.Topics.Control)
		token.WaitTimeout(2 * time.Second)
	}
	slog.Info("control plane handler stopped")
	return nil
}

// messageHandler is called by paho on its own goroutine.
func (h *Handler) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		slog.Error("failed to parse control command", "error", err)
		h.sendResponse(Response{
			CommandAck: "unknown",
			Status:     "error",
			Error:      "invalid JSON",
		})
		return
	}

	slog.Info("control command received", "command", cmd.Command)

	select {
	case h.commands <- cmd:
	default:
		slog.Warn("command queue full, dropping command", "command", cmd.Command)
		h.sendResponse(Response{
			CommandAck: cmd.Command,
			Status:     "error",
			Error:      "command queue full",
		})
	}
}

// Poll implements internal.InputSource.
func (h *Handler) Poll(_ context.Context, ctl internal.Controller) {
	for {
		select {
		case cmd := <-h.commands:
			h.handleCommand(ctl, cmd)
		default:
			return
		}
	}
}

func (h *Handler) handleCommand(ctl internal.Controller, cmd Command) {
	var (
		data map[string]interface{}
		err  error
	)

	switch cmd.Command {
	case "get_status":
		data = statusData(ctl.Stats())

	case "shutdown":
		reason := "mqtt: shutdown"
		if r, ok := cmd.Params["reason"].(string); ok && r != "" {
			reason = "mqtt: " + r
		}
		ctl.RequestShutdown(reason)

	case "set_period":
		var d time.Duration
		d, err = periodParam(cmd.Params)
		if err == nil {
			err = ctl.SetPeriod(d)
		}
		if err == nil {
			data = map[string]interface{}{"period": d.String()}
		}

	default:
		err = fmt.Errorf("unknown command: %s", cmd.Command)
	}

	resp := Response{CommandAck: cmd.Command, Status: "success", Data: data}
	if err != nil {
		slog.Warn("control command failed", "command", cmd.Command, "error", err)
		resp.Status = "error"
		resp.Error = err.Error()
	}
	h.sendResponse(resp)
}

// maxPeriodMS is the largest period_ms that fits a time.Duration.
const maxPeriodMS = float64(math.MaxInt64 / int64(time.Millisecond))

// periodParam accepts {"period": "33ms"} or {"period_ms": 33}.
func periodParam(params map[string]interface{}) (time.Duration, error) {
	if s, ok := params["period"].(string); ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid period %q: %w", s, err)
		}
		return d, nil
	}
	if ms, ok := params["period_ms"].(float64); ok {
		if math.IsNaN(ms) || math.IsInf(ms, 0) || math.Abs(ms) > maxPeriodMS {
			return 0, fmt.Errorf("period_ms out of range: %v", ms)
		}
		return time.Duration(ms * float64(time.Millisecond)), nil
	}
	return 0, fmt.Errorf("missing parameter: period or period_ms")
}

func statusData(st internal.Stats) map[string]interface{} {
	return map[string]interface{}{
		"producer_state": st.ProducerState,
		"fps":            st.LastFPS,
		"presented":      st.Presented,
		"cycles":         st.Cycles,
		"signals":        st.Signals,
		"coalesced":      st.Coalesced,
		"generation":     st.Generation,
		"period_ms":      float64(st.Period) / float64(time.Millisecond),
		"uptime_s":       st.Uptime.Seconds(),
	}
}

// sendResponse publishes without waiting; it may run on the consumer goroutine.
func (h *Handler) sendResponse(resp Response) {
	resp.Timestamp = h.now().UTC().Format(time.RFC3339)

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		return
	}
	if h.client == nil || !h.client.IsConnected() {
		return
	}
	h.client.Publish(h.ResponseTopic(), h.cfg.QoS, false, payload)
}
