// Package input provides InputSource implementations polled by the consumer
// loop: an interactive console, OS signals, and a fan-in of several sources.
//
// Every source that blocks (a terminal read, a signal wait) does so on its
// own goroutine and feeds a buffered channel; Poll only drains that channel
// and never blocks the consumer.
package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chzyer/readline"
	"github.com/docker/go-units"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
)

const consolePrompt = "\033[32mhandoff>\033[0m "

// lineReader is the part of *readline.Instance the console uses.
type lineReader interface {
	Readline() (string, error)
	Close() error
}

// Console reads commands from the terminal.
//
// Commands:
//
//	quit | q | exit    request shutdown
//	period <duration>  change producer pacing (e.g. "period 33ms")
//	status             print a stats line
//	help               list commands
//
// Ctrl-C and EOF (Ctrl-D) request shutdown as well.
type Console struct {
	reader lineReader
	out    io.Writer

	lines     chan string
	closeOnce sync.Once
	closing   atomic.Bool
}

// ConsoleOptions configures a Console.
type ConsoleOptions struct {
	// HistoryFile persists command history (optional).
	HistoryFile string
}

// NewConsole opens the terminal and starts the reader goroutine.
func NewConsole(opts ConsoleOptions) (*Console, error) {
	l, err := readline.NewEx(&readline.Config{
		Prompt:          consolePrompt,
		HistoryFile:     opts.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("console: %w", err)
	}
	return newConsole(l, l.Stdout()), nil
}

func newConsole(r lineReader, out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	c := &Console{
		reader: r,
		out:    out,
		lines:  make(chan string, 16),
	}
	go c.readLoop()
	return c
}

// readLoop blocks in Readline; the consumer never does.
func (c *Console) readLoop() {
	for {
		line, err := c.reader.Readline()
		if c.closing.Load() {
			return
		}
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			c.push("quit interrupt")
			return
		case errors.Is(err, io.EOF):
			c.push("quit eof")
			return
		case err != nil:
			slog.Warn("console read failed", "error", err)
			c.push("quit read-error")
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c.push(line)
	}
}

// push drops the command when the backlog is full.
func (c *Console) push(line string) {
	select {
	case c.lines <- line:
	default:
		slog.Warn("console command dropped, input backlog full", "command", line)
	}
}

// Poll implements internal.InputSource.
func (c *Console) Poll(_ context.Context, ctl internal.Controller) {
	for {
		select {
		case line := <-c.lines:
			c.execute(ctl, line)
		default:
			return
		}
	}
}

func (c *Console) execute(ctl internal.Controller, line string) {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "q", "exit":
		reason := "console: quit"
		if len(args) > 0 {
			reason = "console: " + args[0]
		}
		ctl.RequestShutdown(reason)

	case "period":
		if len(args) != 1 {
			fmt.Fprintln(c.out, "usage: period <duration>  (e.g. period 33ms)")
			return
		}
		d, err := time.ParseDuration(args[0])
		if err != nil {
			fmt.Fprintf(c.out, "invalid duration %q: %v\n", args[0], err)
			return
		}
		if err := ctl.SetPeriod(d); err != nil {
			fmt.Fprintf(c.out, "set period: %v\n", err)
			return
		}
		fmt.Fprintf(c.out, "period set to %v\n", d)

	case "status":
		fmt.Fprintln(c.out, StatusLine(ctl.Stats()))

	case "help", "?":
		fmt.Fprintln(c.out, "commands: quit | period <duration> | status | help")

	default:
		fmt.Fprintf(c.out, "unknown command %q (try help)\n", cmd)
	}
}

// Close restores the terminal; the reader goroutine exits on its next
// return from Readline. Idempotent.
func (c *Console) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		err = c.reader.Close()
	})
	return err
}

// StatusLine formats a one-line session summary.
func StatusLine(st internal.Stats) string {
	return fmt.Sprintf("state=%s fps=%.2f presented=%d cycles=%d coalesced=%d (%.1f%%) period=%v gen=%d uptime=%s",
		st.ProducerState,
		st.LastFPS,
		st.Presented,
		st.Cycles,
		st.Coalesced,
		st.CoalesceRate(),
		st.Period,
		st.Generation,
		units.HumanDuration(st.Uptime),
	)
}
