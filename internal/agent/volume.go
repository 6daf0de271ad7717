package agent

import (
	"context"
	"fmt"

	"github.com/rmitchellscott/couchpilot/internal/command"
)

// volumeStep is the percentage change applied by increase/decrease.
const volumeStep = 10

// VolumeExecutor controls the default PulseAudio/PipeWire sink via pactl.
type VolumeExecutor struct {
	run runner
}

// NewVolumeExecutor creates the volume executor backed by pactl.
func NewVolumeExecutor() *VolumeExecutor {
	return &VolumeExecutor{run: execRunner}
}

func (e *VolumeExecutor) Type() command.Type {
	return command.TypeVolume
}

func (e *VolumeExecutor) Execute(ctx context.Context, payload *command.Payload) error {
	action := payload.Volume
	if action == nil {
		return fmt.Errorf("missing volume action")
	}

	const sink = "@DEFAULT_SINK@"

	var args []string
	switch action.Action {
	case "set":
		if action.Value == nil {
			return fmt.Errorf("volume set requires a value")
		}
		args = []string{"set-sink-volume", sink, fmt.Sprintf("%d%%", clampPercent(*action.Value))}
	case "increase":
		args = []string{"set-sink-volume", sink, fmt.Sprintf("+%d%%", volumeStep)}
	case "decrease":
		args = []string{"set-sink-volume", sink, fmt.Sprintf("-%d%%", volumeStep)}
	case "mute":
		args = []string{"set-sink-mute", sink, "1"}
	case "unmute":
		args = []string{"set-sink-mute", sink, "0"}
	default:
		return fmt.Errorf("unknown volume action %q", action.Action)
	}

	// Raising the volume on a muted sink should be audible
	if action.Action == "set" || action.Action == "increase" {
		if err := e.run(ctx, "pactl", "set-sink-mute", sink, "0"); err != nil {
			return fmt.Errorf("volume action failed: %w", err)
		}
	}

	if err := e.run(ctx, "pactl", args...); err != nil {
		return fmt.Errorf("volume action failed: %w", err)
	}
	return nil
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
