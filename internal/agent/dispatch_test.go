package agent

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rmitchellscott/couchpilot/internal/command"
	"github.com/rmitchellscott/couchpilot/internal/keycrypt"
)

// fakeExecutor records every payload routed to it and returns a fixed error.
type fakeExecutor struct {
	cmdType  command.Type
	err      error
	payloads []*command.Payload
}

func (f *fakeExecutor) Type() command.Type { return f.cmdType }

func (f *fakeExecutor) Execute(ctx context.Context, payload *command.Payload) error {
	f.payloads = append(f.payloads, payload)
	return f.err
}

// fakeReporter records failure reports instead of hitting the network.
type fakeReporter struct {
	reports map[int64]string
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{reports: make(map[int64]string)}
}

func (f *fakeReporter) ReportFailure(ctx context.Context, commandID int64, reason string) error {
	f.reports[commandID] = reason
	return nil
}

func allModules() Modules {
	return Modules{Media: true, Volume: true, Brightness: true}
}

func encryptPayload(t *testing.T, pub *rsa.PublicKey, p *command.Payload) string {
	t.Helper()
	plaintext, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	ciphertext, err := keycrypt.Encrypt(plaintext, pub)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	return ciphertext
}

func TestDispatchExecutesCommand(t *testing.T) {
	key, err := keycrypt.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	registry := NewRegistry(allModules())
	media := &fakeExecutor{cmdType: command.TypeMedia}
	registry.Replace(media)

	reporter := newFakeReporter()
	d := NewDispatcher(key, registry, reporter)

	wire := WireCommand{
		ID:   1,
		Type: "media",
		Payload: encryptPayload(t, &key.PublicKey,
			&command.Payload{Media: &command.MediaAction{Action: "play_pause"}}),
	}

	d.ProcessBatch(context.Background(), []WireCommand{wire})

	if len(media.payloads) != 1 {
		t.Fatalf("executor called %d times, want 1", len(media.payloads))
	}
	if media.payloads[0].Media.Action != "play_pause" {
		t.Errorf("action = %q, want play_pause", media.payloads[0].Media.Action)
	}
	if len(reporter.reports) != 0 {
		t.Errorf("successful command reported as failed: %v", reporter.reports)
	}
}

func TestDispatchReportsExecutorFailure(t *testing.T) {
	key, _ := keycrypt.GenerateKeyPair()

	registry := NewRegistry(allModules())
	registry.Replace(&fakeExecutor{cmdType: command.TypeVolume, err: errors.New("pactl: no default sink")})

	reporter := newFakeReporter()
	d := NewDispatcher(key, registry, reporter)

	wire := WireCommand{
		ID:   7,
		Type: "volume",
		Payload: encryptPayload(t, &key.PublicKey,
			&command.Payload{Volume: &command.VolumeAction{Action: "mute"}}),
	}

	d.ProcessBatch(context.Background(), []WireCommand{wire})

	reason, ok := reporter.reports[7]
	if !ok {
		t.Fatal("executor failure not reported")
	}
	if !strings.Contains(reason, "no default sink") {
		t.Errorf("reason = %q, want executor error text", reason)
	}
}

func TestDispatchReportsDecryptionFailureGenerically(t *testing.T) {
	ourKey, _ := keycrypt.GenerateKeyPair()
	otherKey, _ := keycrypt.GenerateKeyPair()

	registry := NewRegistry(allModules())
	media := &fakeExecutor{cmdType: command.TypeMedia}
	registry.Replace(media)

	reporter := newFakeReporter()
	d := NewDispatcher(ourKey, registry, reporter)

	// Encrypted under a different device's key
	wire := WireCommand{
		ID:   3,
		Type: "media",
		Payload: encryptPayload(t, &otherKey.PublicKey,
			&command.Payload{Media: &command.MediaAction{Action: "next"}}),
	}

	d.ProcessBatch(context.Background(), []WireCommand{wire})

	if len(media.payloads) != 0 {
		t.Error("undecryptable command must never reach an executor")
	}
	reason, ok := reporter.reports[3]
	if !ok {
		t.Fatal("decryption failure not reported")
	}
	if reason != "payload decryption failed" {
		t.Errorf("reason = %q, want the generic decryption message", reason)
	}
}

func TestDispatchReportsExecutorTimeout(t *testing.T) {
	key, _ := keycrypt.GenerateKeyPair()

	registry := NewRegistry(allModules())
	registry.execTimeout = 30 * time.Millisecond
	registry.Replace(&MediaExecutor{run: func(ctx context.Context, name string, args ...string) error {
		<-ctx.Done()
		return fmt.Errorf("%s timed out", name)
	}})

	reporter := newFakeReporter()
	d := NewDispatcher(key, registry, reporter)

	wire := WireCommand{
		ID:   11,
		Type: "media",
		Payload: encryptPayload(t, &key.PublicKey,
			&command.Payload{Media: &command.MediaAction{Action: "stop"}}),
	}

	d.ProcessBatch(context.Background(), []WireCommand{wire})

	reason, ok := reporter.reports[11]
	if !ok {
		t.Fatal("timed-out command not reported")
	}
	if !strings.Contains(reason, "timed out") {
		t.Errorf("reason = %q, want the timeout surfaced upstream", reason)
	}
}

func TestDispatchDisabledModule(t *testing.T) {
	key, _ := keycrypt.GenerateKeyPair()

	registry := NewRegistry(Modules{Media: true, Volume: true, Brightness: false})
	brightness := &fakeExecutor{cmdType: command.TypeBrightness}
	registry.Replace(brightness)

	reporter := newFakeReporter()
	d := NewDispatcher(key, registry, reporter)

	value := 50
	wire := WireCommand{
		ID:   9,
		Type: "brightness",
		Payload: encryptPayload(t, &key.PublicKey,
			&command.Payload{Brightness: &command.BrightnessAction{Action: "set", Value: &value}}),
	}

	d.ProcessBatch(context.Background(), []WireCommand{wire})

	if len(brightness.payloads) != 0 {
		t.Error("disabled module executor must not be called")
	}
	reason, ok := reporter.reports[9]
	if !ok {
		t.Fatal("disabled module failure not reported")
	}
	if !strings.Contains(reason, "disabled") {
		t.Errorf("reason = %q, want mention of the disabled module", reason)
	}
}

func TestDispatchUnknownType(t *testing.T) {
	key, _ := keycrypt.GenerateKeyPair()
	registry := NewRegistry(allModules())
	reporter := newFakeReporter()
	d := NewDispatcher(key, registry, reporter)

	wire := WireCommand{ID: 4, Type: "reboot", Payload: "irrelevant"}
	d.ProcessBatch(context.Background(), []WireCommand{wire})

	if _, ok := reporter.reports[4]; !ok {
		t.Error("unknown command type not reported")
	}
}

func TestDispatchBatchIsolation(t *testing.T) {
	key, _ := keycrypt.GenerateKeyPair()

	registry := NewRegistry(allModules())
	media := &fakeExecutor{cmdType: command.TypeMedia, err: errors.New("playerctl: no players found")}
	volume := &fakeExecutor{cmdType: command.TypeVolume}
	registry.Replace(media)
	registry.Replace(volume)

	reporter := newFakeReporter()
	d := NewDispatcher(key, registry, reporter)

	batch := []WireCommand{
		{
			ID:   1,
			Type: "media",
			Payload: encryptPayload(t, &key.PublicKey,
				&command.Payload{Media: &command.MediaAction{Action: "stop"}}),
		},
		{
			ID:   2,
			Type: "volume",
			Payload: encryptPayload(t, &key.PublicKey,
				&command.Payload{Volume: &command.VolumeAction{Action: "increase"}}),
		},
	}

	d.ProcessBatch(context.Background(), batch)

	if _, ok := reporter.reports[1]; !ok {
		t.Error("first command's failure not reported")
	}
	if len(volume.payloads) != 1 {
		t.Error("failure of one command must not stop the rest of the batch")
	}
	if _, ok := reporter.reports[2]; ok {
		t.Error("successful command must not be reported as failed")
	}
}

func TestDispatchTypePayloadMismatch(t *testing.T) {
	key, _ := keycrypt.GenerateKeyPair()

	registry := NewRegistry(allModules())
	volume := &fakeExecutor{cmdType: command.TypeVolume}
	registry.Replace(volume)

	reporter := newFakeReporter()
	d := NewDispatcher(key, registry, reporter)

	// Declared volume, carries a media action
	wire := WireCommand{
		ID:   5,
		Type: "volume",
		Payload: encryptPayload(t, &key.PublicKey,
			&command.Payload{Media: &command.MediaAction{Action: "next"}}),
	}

	d.ProcessBatch(context.Background(), []WireCommand{wire})

	if len(volume.payloads) != 0 {
		t.Error("mismatched payload must not reach an executor")
	}
	if _, ok := reporter.reports[5]; !ok {
		t.Error("payload mismatch not reported")
	}
}
