package main

import (
	"fmt"

	"github.com/docker/go-units"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff"
	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal/display"
	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal/display/gstsink"
	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal/emitter"
)

// printFinalStats prints final statistics at shutdown
func printFinalStats(
	st framehandoff.Stats,
	counter *display.Counter,
	cadence *display.Cadence,
	saver *display.Saver,
	window *gstsink.Window,
	mqttEmitter *emitter.MQTTEmitter,
) {
	fmt.Println()
	fmt.Println("╭─────────────────────────────────────────────────────────────────╮")
	fmt.Printf("│ Final Statistics (Session %s, Uptime: %s)\n", st.SessionID, units.HumanDuration(st.Uptime))
	fmt.Println("├─────────────────────────────────────────────────────────────────┤")

	fmt.Println("│ Producer:")
	fmt.Printf("│   Cycles:             %6d\n", st.Cycles)
	fmt.Printf("│   Compute Failures:   %6d\n", st.ComputeFailures)
	fmt.Printf("│   Acquire Failures:   %6d\n", st.AcquireFailures)
	fmt.Printf("│   Generation:         %6d\n", st.Generation)
	fmt.Printf("│   Period:             %v\n", st.Period)

	fmt.Println("│")
	fmt.Println("│ Handoff:")
	fmt.Printf("│   Signals:            %6d\n", st.Signals)
	fmt.Printf("│   Coalesced:          %6d (%.1f%%)\n", st.Coalesced, st.CoalesceRate())

	fmt.Println("│")
	fmt.Println("│ Consumer:")
	fmt.Printf("│   Presented:          %6d frames\n", st.Presented)
	fmt.Printf("│   Present Failures:   %6d\n", st.PresentFailures)
	fmt.Printf("│   Wait Timeouts:      %6d\n", st.Timeouts)
	fmt.Printf("│   Last FPS:           %6.2f fps\n", st.LastFPS)
	fmt.Printf("│   Counted Frames:     %6d\n", counter.Frames())

	cs := cadence.Stats()
	fmt.Println("│")
	fmt.Printf("│ Cadence (last %d presents):\n", cs.Frames)
	fmt.Printf("│   FPS Mean:           %6.2f fps\n", cs.FPSMean)
	fmt.Printf("│   FPS StdDev:         %6.2f fps\n", cs.FPSStdDev)
	fmt.Printf("│   FPS Range:          %6.1f - %.1f fps\n", cs.FPSMin, cs.FPSMax)
	fmt.Printf("│   Jitter Mean:        %v\n", cs.JitterMean)
	fmt.Printf("│   Jitter Max:         %v\n", cs.JitterMax)
	fmt.Printf("│   Steady:             %6v\n", cs.Steady)

	if saver != nil {
		saved, dropped, failed := saver.Stats()
		fmt.Println("│")
		fmt.Println("│ Frame Saving:")
		fmt.Printf("│   Frames Saved:       %6d frames\n", saved)
		fmt.Printf("│   Save Drops:         %6d frames\n", dropped)
		fmt.Printf("│   Save Failures:      %6d\n", failed)
	}

	if window != nil {
		pushed, failed := window.Stats()
		fmt.Println("│")
		fmt.Println("│ Window:")
		fmt.Printf("│   Buffers Pushed:     %6d\n", pushed)
		fmt.Printf("│   Push Failures:      %6d\n", failed)
	}

	if mqttEmitter != nil {
		ms := mqttEmitter.Stats()
		fmt.Println("│")
		fmt.Println("│ MQTT:")
		fmt.Printf("│   Reports Published:  %6d\n", ms.Published)
		fmt.Printf("│   Publish Errors:     %6d\n", ms.Errors)
	}

	if st.ShutdownReason != "" {
		fmt.Println("├─────────────────────────────────────────────────────────────────┤")
		fmt.Printf("│ Shutdown reason: %s\n", st.ShutdownReason)
	}
	fmt.Println("╰─────────────────────────────────────────────────────────────────╯")
	fmt.Println()
}
