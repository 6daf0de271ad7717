package agent

import (
	"context"
	"fmt"

	"github.com/rmitchellscott/couchpilot/internal/command"
)

// MediaExecutor drives the active media player through playerctl, which talks
// MPRIS to whatever player is running.
type MediaExecutor struct {
	run runner
}

// NewMediaExecutor creates the media executor backed by playerctl.
func NewMediaExecutor() *MediaExecutor {
	return &MediaExecutor{run: execRunner}
}

func (e *MediaExecutor) Type() command.Type {
	return command.TypeMedia
}

func (e *MediaExecutor) Execute(ctx context.Context, payload *command.Payload) error {
	action := payload.Media
	if action == nil {
		return fmt.Errorf("missing media action")
	}

	var verb string
	switch action.Action {
	case "next":
		verb = "next"
	case "previous":
		verb = "previous"
	case "play_pause":
		verb = "play-pause"
	case "stop":
		verb = "stop"
	default:
		return fmt.Errorf("unknown media action %q", action.Action)
	}

	if err := e.run(ctx, "playerctl", verb); err != nil {
		return fmt.Errorf("media action failed: %w", err)
	}
	return nil
}
