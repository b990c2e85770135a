// Package framehandoff implements a real-time producer/consumer handoff of
// one shared, exclusively-owned frame buffer.
//
// # Philosophy
//
// "Present the latest frame, never queue."
//
// A compute producer renders into a buffer that a display consumer shows.
// The consumer only ever needs the most recent completed frame: a frame
// finished while the previous one is still pending replaces it.
//
// # Design Principles
//
//  1. Single slot: ReadySignal holds one pending frame, overwrite on signal
//  2. Exclusive ownership: the producer mutates only between Acquire and
//     Release; the consumer reads only inside Resource.View
//  3. Bounded wait: the consumer never blocks longer than its wait timeout,
//     so input and shutdown stay responsive even if the producer stalls
//  4. Clean shutdown: one flag, set from anywhere; the producer finishes its
//     release, is joined, and only then the device is torn down
//
// # Architecture
//
//	   producer goroutine                         consumer (caller goroutine)
//	compute → acquire → mutate → release          wait(5ms) ──timeout──→ poll input
//	    ↑                            │               │ready
//	    └──── signal ←── pace(16.6ms)┘               └→ view+present → clear → poll
//	                        │                                              │
//	                        └────────── ReadySignal (1 slot) ──────────────┘
//
// # Basic Usage
//
//	sess, err := framehandoff.New(framehandoff.Config{
//	    Device:    device.NewMemory(device.Options{Width: 640, Height: 480}),
//	    Kernel:    kernel.NewSweep(),
//	    Presenter: saver,
//	    Input:     input.NewSignals(),
//	    Reporter:  emitter.NewLogReporter(logger),
//	})
//	if err != nil {
//	    return err
//	}
//	// Blocks until shutdown; the consumer runs on this goroutine.
//	if err := sess.Run(ctx); err != nil {
//	    return err
//	}
//
// # Monitoring
//
//	st := sess.Stats()
//	// Coalesced > 0 is expected when the producer outpaces the consumer.
//	log.Info("handoff", "fps", st.LastFPS, "coalesce_rate", st.CoalesceRate())
//
// # Thread Safety
//
// Every Session method except Run is safe for concurrent use. Run borrows
// the calling goroutine for the consumer loop.
package framehandoff
