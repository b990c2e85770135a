package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadSettle is how long a burst of write events must stay quiet before the
// file is re-read. Editors write in several steps; reading too early sees an
// empty or partial file.
const reloadSettle = 50 * time.Millisecond

// Watch re-reads path whenever it changes and calls apply with each valid
// configuration. Invalid files are logged and skipped; the previous
// configuration stays in effect. Blocks until ctx is done.
func Watch(ctx context.Context, path string, apply func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("config watch %s: %w", path, err)
	}
	slog.Info("watching config for changes", "path", path)

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			slog.Debug("config file event", "path", event.Name, "op", event.Op.String())
			// Restart the settle window on every event of the burst.
			settle = time.After(reloadSettle)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "error", err)

		case <-settle:
			settle = nil
			cfg, err := Load(path)
			if err != nil {
				slog.Warn("config reload rejected, keeping previous configuration",
					"path", path,
					"error", err,
				)
			} else {
				apply(cfg)
			}
			// Text editors replace the file by rename, which drops the watch.
			if err := watcher.Add(path); err != nil {
				slog.Warn("config re-watch failed", "path", path, "error", err)
			}
		}
	}
}

// RestartRequired lists the settings that differ between old and next and
// cannot be applied to a running session. producer.period_us is the only
// live setting and is never listed.
func RestartRequired(old, next *Config) []string {
	var changes []string
	add := func(name string, a, b any) {
		if a != b {
			changes = append(changes, fmt.Sprintf("%s: %v → %v", name, a, b))
		}
	}

	add("session_id", old.SessionID, next.SessionID)
	add("resource.width", old.Resource.Width, next.Resource.Width)
	add("resource.height", old.Resource.Height, next.Resource.Height)
	add("producer.step", old.Producer.Step, next.Producer.Step)
	add("producer.fail_every", old.Producer.FailEvery, next.Producer.FailEvery)
	add("consumer.wait_timeout_ms", old.Consumer.WaitTimeoutMS, next.Consumer.WaitTimeoutMS)
	add("consumer.report_interval_s", old.Consumer.ReportIntervalS, next.Consumer.ReportIntervalS)
	add("display.mode", old.Display.Mode, next.Display.Mode)
	add("display.output_dir", old.Display.OutputDir, next.Display.OutputDir)
	add("display.format", old.Display.Format, next.Display.Format)
	add("mqtt.broker", old.MQTT.Broker, next.MQTT.Broker)
	add("health.addr", old.Health.Addr, next.Health.Addr)
	return changes
}
