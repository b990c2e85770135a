package internal

import "errors"

// Sentinel errors. Callers match them with errors.Is; wrapped context is
// added with fmt.Errorf("...: %w").
var (
	// ErrSetup wraps any device/context setup failure. Fatal: the loops are
	// never started when Session.Run returns it.
	ErrSetup = errors.New("framehandoff: setup failed")

	// ErrAlreadyAcquired is returned by ExclusiveBarrier.Acquire when the
	// producer already owns the resource (acquire without matching release).
	ErrAlreadyAcquired = errors.New("framehandoff: resource already acquired by producer")

	// ErrNotAcquired is returned by ExclusiveBarrier.Release when the producer
	// does not own the resource.
	ErrNotAcquired = errors.New("framehandoff: resource not acquired by producer")

	// ErrTeardownWhileAcquired is returned by device teardown when the
	// producer still owns the resource.
	ErrTeardownWhileAcquired = errors.New("framehandoff: teardown while resource acquired")

	// ErrAlreadyRunning is returned when Session.Run is called twice.
	ErrAlreadyRunning = errors.New("framehandoff: session already running")

	// ErrInvalidPeriod is returned by SetPeriod for non-positive periods.
	ErrInvalidPeriod = errors.New("framehandoff: pacing period must be > 0")
)
