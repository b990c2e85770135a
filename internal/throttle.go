package internal

import (
	"log/slog"
	"sync/atomic"
	"time"

	catrate "github.com/joeycumines/go-catrate"
)

// failureLogRates bounds per-category failure logging. A broken kernel at
// 60 fps would otherwise emit 3600 lines a minute.
var failureLogRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 60,
}

// throttledLog logs repeated per-cycle failures through a catrate limiter,
// carrying the number of suppressed lines into the next allowed one.
type throttledLog struct {
	limiter    *catrate.Limiter
	suppressed atomic.Uint64
}

func newThrottledLog() *throttledLog {
	return &throttledLog{limiter: catrate.NewLimiter(failureLogRates)}
}

func (t *throttledLog) warn(logger *slog.Logger, category, msg string, args ...any) {
	if _, ok := t.limiter.Allow(category); !ok {
		t.suppressed.Add(1)
		return
	}
	if n := t.suppressed.Swap(0); n > 0 {
		args = append(args, "suppressed", n)
	}
	logger.Warn(msg, args...)
}
