package agent

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rmitchellscott/couchpilot/internal/command"
)

// ErrUnsupported is returned when a command targets an unknown type or a
// module that is disabled in the local configuration.
var ErrUnsupported = errors.New("unsupported action")

// DefaultExecTimeout bounds each OS-level executor call. Expiry is treated as
// an executor failure and reported upstream like any other.
const DefaultExecTimeout = 10 * time.Second

// Executor performs the OS-level side effect for one command type.
type Executor interface {
	Type() command.Type
	Execute(ctx context.Context, payload *command.Payload) error
}

// runner invokes an external control binary. Tests substitute a fake.
type runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%s timed out", name)
		}
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s: %v: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %v", name, err)
	}
	return nil
}

// Registry routes commands to executors and tracks which modules are enabled.
type Registry struct {
	executors   map[command.Type]Executor
	enabled     map[command.Type]bool
	execTimeout time.Duration
}

// NewRegistry builds the executor set from the configured module flags.
func NewRegistry(modules Modules) *Registry {
	r := &Registry{
		executors: make(map[command.Type]Executor),
		enabled: map[command.Type]bool{
			command.TypeMedia:      modules.Media,
			command.TypeVolume:     modules.Volume,
			command.TypeBrightness: modules.Brightness,
		},
		execTimeout: DefaultExecTimeout,
	}
	r.register(NewMediaExecutor())
	r.register(NewVolumeExecutor())
	r.register(NewBrightnessExecutor())
	return r
}

func (r *Registry) register(e Executor) {
	r.executors[e.Type()] = e
}

// Replace swaps in a different executor for a type. Used by tests.
func (r *Registry) Replace(e Executor) {
	r.executors[e.Type()] = e
}

// Dispatch routes a payload to the executor for t. Unknown types and disabled
// modules both yield ErrUnsupported. The executor call is bounded only by its
// own timeout, not by the caller's cancellation: an in-flight side effect is
// allowed to finish even during shutdown.
func (r *Registry) Dispatch(ctx context.Context, t command.Type, payload *command.Payload) error {
	executor, ok := r.executors[t]
	if !ok {
		return fmt.Errorf("%w: unknown command type %q", ErrUnsupported, t)
	}
	if !r.enabled[t] {
		return fmt.Errorf("%w: %s module is disabled", ErrUnsupported, t)
	}

	execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.execTimeout)
	defer cancel()

	return executor.Execute(execCtx, payload)
}
