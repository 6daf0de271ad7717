package agent

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/rmitchellscott/couchpilot/internal/command"
	"github.com/rmitchellscott/couchpilot/internal/keycrypt"
	"github.com/rmitchellscott/couchpilot/internal/logging"
)

// failureReporter reports a command execution failure upstream. Satisfied by
// *Client; tests substitute a recorder.
type failureReporter interface {
	ReportFailure(ctx context.Context, commandID int64, reason string) error
}

// Dispatcher decrypts polled commands and routes them to executors. Failures
// are isolated per command: decryption errors, unsupported actions and
// executor errors are each reported upstream and never abort the batch.
type Dispatcher struct {
	privateKey *rsa.PrivateKey
	registry   *Registry
	reporter   failureReporter
}

// NewDispatcher wires a dispatcher from the device key, executor registry and
// the API client used for failure reports.
func NewDispatcher(privateKey *rsa.PrivateKey, registry *Registry, reporter failureReporter) *Dispatcher {
	return &Dispatcher{
		privateKey: privateKey,
		registry:   registry,
		reporter:   reporter,
	}
}

// ProcessBatch executes a poll response in order. Commands run sequentially;
// the ordering of OS side effects matters to the user.
func (d *Dispatcher) ProcessBatch(ctx context.Context, commands []WireCommand) {
	log := logging.WithComponent(logging.ComponentDispatch)

	for _, cmd := range commands {
		if ctx.Err() != nil {
			return
		}

		if err := d.process(ctx, cmd); err != nil {
			log.Warn("Command failed", "command_id", cmd.ID, "type", cmd.Type, "error", err)
			d.report(ctx, cmd.ID, err)
			continue
		}
		log.Info("Command executed", "command_id", cmd.ID, "type", cmd.Type)
	}
}

func (d *Dispatcher) process(ctx context.Context, cmd WireCommand) error {
	cmdType, err := command.ParseType(cmd.Type)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	plaintext, err := keycrypt.Decrypt(cmd.Payload, d.privateKey)
	if err != nil {
		return err
	}

	payload, err := command.DecodePayload(plaintext)
	if err != nil {
		return err
	}
	if err := payload.Validate(cmdType); err != nil {
		return err
	}

	return d.registry.Dispatch(ctx, cmdType, payload)
}

// report sends the failure upstream. A report that cannot reach the server is
// only logged; the command is already marked sent server-side either way.
// Reporting survives loop cancellation so the failure of an in-flight command
// still lands during shutdown.
func (d *Dispatcher) report(ctx context.Context, commandID int64, execErr error) {
	reason := execErr.Error()
	if errors.Is(execErr, keycrypt.ErrDecryption) {
		reason = "payload decryption failed"
	}

	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := d.reporter.ReportFailure(reportCtx, commandID, reason); err != nil {
		logging.WarnWithComponent(logging.ComponentDispatch, "Failed to report command failure",
			"command_id", commandID, "error", err)
	}
}
