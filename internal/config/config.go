package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete handoffd configuration
type Config struct {
	SessionID        string         `yaml:"session_id"`
	ShutdownTimeoutS int            `yaml:"shutdown_timeout_s"` // Graceful shutdown timeout in seconds (default: 5)
	Console          bool           `yaml:"console"`            // Interactive console on stdin
	Resource         ResourceConfig `yaml:"resource"`
	Producer         ProducerConfig `yaml:"producer"`
	Consumer         ConsumerConfig `yaml:"consumer"`
	Display          DisplayConfig  `yaml:"display"`
	MQTT             MQTTConfig     `yaml:"mqtt"`
	Health           HealthConfig   `yaml:"health"`
}

// ResourceConfig sizes the shared frame buffer
type ResourceConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ProducerConfig contains compute-side settings
type ProducerConfig struct {
	PeriodUS         int     `yaml:"period_us"`          // pacing delay after each release (default: 16666)
	Step             float64 `yaml:"step"`               // animation increment per cycle (default: 0.01)
	FailEvery        int     `yaml:"fail_every"`         // inject a compute failure every N steps (0 = never)
	AcquireLatencyUS int     `yaml:"acquire_latency_us"` // simulated device acquire cost
	ReleaseLatencyUS int     `yaml:"release_latency_us"` // simulated device release cost
}

// ConsumerConfig contains presentation-side settings
type ConsumerConfig struct {
	WaitTimeoutMS   int `yaml:"wait_timeout_ms"`   // bounded wait per iteration (default: 5)
	ReportIntervalS int `yaml:"report_interval_s"` // frame rate window (default: 3)
}

// DisplayConfig selects the presenter
type DisplayConfig struct {
	Mode        string `yaml:"mode"`         // none, snapshot, window
	OutputDir   string `yaml:"output_dir"`   // snapshot mode only
	Format      string `yaml:"format"`       // png, jpeg, bmp
	JPEGQuality int    `yaml:"jpeg_quality"` // 1-100
	EveryN      int    `yaml:"every_n"`      // save one of every N presented frames
}

// MQTTConfig contains MQTT broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker   string     `yaml:"broker"`
	ClientID string     `yaml:"client_id"`
	Topics   MQTTTopics `yaml:"topics"`
	QoS      byte       `yaml:"qos"`
	Encoding string     `yaml:"encoding"` // json, msgpack
}

// MQTTTopics contains topic names
type MQTTTopics struct {
	Control string `yaml:"control"`
	Reports string `yaml:"reports"`
}

// HealthConfig contains the HTTP health server settings. An empty address
// disables the server.
type HealthConfig struct {
	Addr string `yaml:"addr"`
}

// Display modes
const (
	DisplayNone     = "none"
	DisplaySnapshot = "snapshot"
	DisplayWindow   = "window"
)

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes and validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a validated configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	if err := Validate(cfg); err != nil {
		// Defaults must always validate.
		panic(fmt.Sprintf("config: default configuration invalid: %v", err))
	}
	return cfg
}

// Period returns the producer pacing period
func (c *Config) Period() time.Duration {
	return time.Duration(c.Producer.PeriodUS) * time.Microsecond
}

// WaitTimeout returns the consumer wait bound
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.Consumer.WaitTimeoutMS) * time.Millisecond
}

// ReportInterval returns the frame rate window
func (c *Config) ReportInterval() time.Duration {
	return time.Duration(c.Consumer.ReportIntervalS) * time.Second
}

// ShutdownTimeout returns the graceful shutdown budget
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}

// AcquireLatency returns the simulated device acquire cost
func (c *Config) AcquireLatency() time.Duration {
	return time.Duration(c.Producer.AcquireLatencyUS) * time.Microsecond
}

// ReleaseLatency returns the simulated device release cost
func (c *Config) ReleaseLatency() time.Duration {
	return time.Duration(c.Producer.ReleaseLatencyUS) * time.Microsecond
}
