package config

import (
	"fmt"
	"regexp"
)

// minStep matches the smallest animation step the producer accepts.
const minStep = 1e-9

var sessionIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks the configuration and fills defaults in place
func Validate(cfg *Config) error {
	// session_id is optional (a uuid is generated), but must be topic-safe
	if cfg.SessionID != "" && !sessionIDPattern.MatchString(cfg.SessionID) {
		return fmt.Errorf("session_id must match pattern [a-z0-9-]+")
	}

	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}

	// Resource
	if cfg.Resource.Width == 0 {
		cfg.Resource.Width = 640
	}
	if cfg.Resource.Height == 0 {
		cfg.Resource.Height = 480
	}
	if cfg.Resource.Width < 0 || cfg.Resource.Height < 0 {
		return fmt.Errorf("resource dimensions must be > 0, got %dx%d",
			cfg.Resource.Width, cfg.Resource.Height)
	}

	// Producer
	if cfg.Producer.PeriodUS < 0 {
		return fmt.Errorf("producer.period_us must be > 0")
	}
	if cfg.Producer.PeriodUS == 0 {
		cfg.Producer.PeriodUS = 16666
	}
	if cfg.Producer.Step == 0 {
		cfg.Producer.Step = 0.01
	}
	if cfg.Producer.Step < minStep || cfg.Producer.Step > 1 {
		return fmt.Errorf("producer.step must be in [%v, 1], got %v", minStep, cfg.Producer.Step)
	}
	if cfg.Producer.FailEvery < 0 {
		return fmt.Errorf("producer.fail_every must be >= 0")
	}
	if cfg.Producer.AcquireLatencyUS < 0 || cfg.Producer.ReleaseLatencyUS < 0 {
		return fmt.Errorf("producer latencies must be >= 0")
	}

	// Consumer
	if cfg.Consumer.WaitTimeoutMS <= 0 {
		cfg.Consumer.WaitTimeoutMS = 5
	}
	if cfg.Consumer.ReportIntervalS <= 0 {
		cfg.Consumer.ReportIntervalS = 3
	}

	if err := validateDisplay(&cfg.Display); err != nil {
		return fmt.Errorf("display validation failed: %w", err)
	}
	if err := validateMQTT(cfg); err != nil {
		return fmt.Errorf("mqtt validation failed: %w", err)
	}

	return nil
}

func validateDisplay(d *DisplayConfig) error {
	switch d.Mode {
	case "":
		d.Mode = DisplayNone
	case DisplayNone, DisplaySnapshot, DisplayWindow:
	default:
		return fmt.Errorf("unknown mode '%s' (must be 'none', 'snapshot' or 'window')", d.Mode)
	}

	switch d.Format {
	case "":
		d.Format = "png"
	case "png", "jpeg", "jpg", "bmp":
	default:
		return fmt.Errorf("unknown format '%s' (must be 'png', 'jpeg' or 'bmp')", d.Format)
	}

	if d.JPEGQuality == 0 {
		d.JPEGQuality = 90
	}
	if d.JPEGQuality < 1 || d.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be in [1, 100], got %d", d.JPEGQuality)
	}
	if d.EveryN <= 0 {
		d.EveryN = 1
	}
	if d.Mode == DisplaySnapshot && d.OutputDir == "" {
		d.OutputDir = "frames"
	}
	return nil
}

func validateMQTT(cfg *Config) error {
	m := &cfg.MQTT
	if m.Broker == "" {
		// MQTT disabled
		return nil
	}

	if m.ClientID == "" {
		m.ClientID = "framehandoff"
		if cfg.SessionID != "" {
			m.ClientID = fmt.Sprintf("framehandoff-%s", cfg.SessionID)
		}
	}

	// Set default topics if not provided
	suffix := cfg.SessionID
	if suffix == "" {
		suffix = "default"
	}
	if m.Topics.Control == "" {
		m.Topics.Control = fmt.Sprintf("framehandoff/control/%s", suffix)
	}
	if m.Topics.Reports == "" {
		m.Topics.Reports = fmt.Sprintf("framehandoff/reports/%s", suffix)
	}

	if m.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", m.QoS)
	}

	switch m.Encoding {
	case "":
		m.Encoding = "json"
	case "json", "msgpack":
	default:
		return fmt.Errorf("unknown encoding '%s' (must be 'json' or 'msgpack')", m.Encoding)
	}
	return nil
}
