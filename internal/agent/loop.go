package agent

import (
	"context"
	"sync"
	"time"

	"github.com/rmitchellscott/couchpilot/internal/logging"
)

// Loop is the agent's polling scheduler. A single goroutine runs one
// poll-and-dispatch cycle at a time; ticker ticks that arrive while a cycle
// is in flight are dropped, so the same due window is never executed twice.
type Loop struct {
	client     *Client
	dispatcher *Dispatcher
	interval   time.Duration

	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewLoop creates a polling loop.
func NewLoop(client *Client, dispatcher *Dispatcher, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Loop{
		client:     client,
		dispatcher: dispatcher,
		interval:   interval,
	}
}

// Start begins polling in a goroutine. Safe to call once.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return
	}

	logging.InfoWithComponent(logging.ComponentAgent, "Polling started", "interval", l.interval)

	l.ctx, l.cancel = context.WithCancel(ctx)
	l.running = true

	l.wg.Add(1)
	go l.run()
}

// Stop cancels the loop and waits for any in-flight cycle to finish, so a
// command mid-dispatch is never cut off abruptly.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return
	}

	l.cancel()
	l.wg.Wait()
	l.running = false

	logging.InfoWithComponent(logging.ComponentAgent, "Polling stopped")
}

func (l *Loop) run() {
	defer l.wg.Done()

	// Run once immediately
	l.cycle()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.cycle()
		}
	}
}

// cycle is one check-in, poll and dispatch pass. Network errors are logged
// and swallowed; the next tick retries on the fixed interval.
func (l *Loop) cycle() {
	log := logging.WithComponent(logging.ComponentAgent)

	if err := l.client.CheckIn(l.ctx); err != nil {
		log.Debug("Check-in failed", "error", err)
	}

	commands, err := l.client.Poll(l.ctx)
	if err != nil {
		log.Warn("Poll failed", "error", err)
		return
	}
	if len(commands) == 0 {
		return
	}

	log.Info("Received commands", "count", len(commands))
	l.dispatcher.ProcessBatch(l.ctx, commands)
}
