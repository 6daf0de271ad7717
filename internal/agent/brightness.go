package agent

import (
	"context"
	"fmt"

	"github.com/rmitchellscott/couchpilot/internal/command"
)

// brightnessStep is the percentage change applied by increase/decrease.
const brightnessStep = 10

// BrightnessExecutor controls the display backlight via brightnessctl.
type BrightnessExecutor struct {
	run runner
}

// NewBrightnessExecutor creates the brightness executor backed by brightnessctl.
func NewBrightnessExecutor() *BrightnessExecutor {
	return &BrightnessExecutor{run: execRunner}
}

func (e *BrightnessExecutor) Type() command.Type {
	return command.TypeBrightness
}

func (e *BrightnessExecutor) Execute(ctx context.Context, payload *command.Payload) error {
	action := payload.Brightness
	if action == nil {
		return fmt.Errorf("missing brightness action")
	}

	var arg string
	switch action.Action {
	case "set":
		if action.Value == nil {
			return fmt.Errorf("brightness set requires a value")
		}
		arg = fmt.Sprintf("%d%%", clampPercent(*action.Value))
	case "increase":
		arg = fmt.Sprintf("+%d%%", brightnessStep)
	case "decrease":
		arg = fmt.Sprintf("%d%%-", brightnessStep)
	default:
		return fmt.Errorf("unknown brightness action %q", action.Action)
	}

	if err := e.run(ctx, "brightnessctl", "set", arg); err != nil {
		return fmt.Errorf("brightness action failed: %w", err)
	}
	return nil
}
