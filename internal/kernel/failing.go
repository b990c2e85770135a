package kernel

import (
	"context"
	"errors"
	"fmt"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
)

// ErrInjected is returned by FailEvery on its injected failures.
var ErrInjected = errors.New("kernel: injected failure")

// failEvery wraps a kernel, failing every n-th step without calling it.
type failEvery struct {
	next  internal.Kernel
	n     uint64
	steps uint64
}

// FailEvery returns a kernel that fails every n-th step with ErrInjected
// and otherwise delegates to next. n <= 0 returns next unchanged. Used to
// exercise the transient compute failure path (release and signal still
// happen, generation stays put).
func FailEvery(next internal.Kernel, n int) internal.Kernel {
	if n <= 0 {
		return next
	}
	return &failEvery{next: next, n: uint64(n)}
}

// Step implements internal.Kernel.
func (f *failEvery) Step(ctx context.Context, x float64, res *internal.Resource) error {
	f.steps++
	if f.steps%f.n == 0 {
		return fmt.Errorf("step %d: %w", f.steps, ErrInjected)
	}
	return f.next.Step(ctx, x, res)
}
