// Command agent is the device-side Couchpilot daemon. It registers the
// machine against a server using a one-time token, then polls for encrypted
// commands and executes them locally.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rmitchellscott/couchpilot/internal/agent"
	"github.com/rmitchellscott/couchpilot/internal/logging"
	"github.com/rmitchellscott/couchpilot/internal/version"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Couchpilot agent %s

Usage:
  agent register <token> [--server URL] [--name NAME]
  agent start

Commands:
  register   Generate a device keypair and redeem a registration token
  start      Run the polling daemon using the saved configuration
`, version.String())
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "register":
		err = runRegister(os.Args[2:])
	case "start":
		err = runStart()
	case "--version", "-v":
		fmt.Println(version.String())
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logging.ErrorWithComponent(logging.ComponentAgent, "Fatal", "error", err)
		os.Exit(1)
	}
}

func runRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8000", "Couchpilot server URL")
	name := fs.String("name", "", "device name (defaults to hostname)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("registration token required")
	}
	token := fs.Arg(0)

	if *name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to determine hostname: %w", err)
		}
		*name = hostname
	}

	dir, err := agent.DefaultConfigDir()
	if err != nil {
		return err
	}

	_, publicKey, err := agent.GenerateKeyPair(dir)
	if err != nil {
		return err
	}

	client := agent.NewClient(*serverURL, "")
	result, err := client.Activate(context.Background(), token, publicKey, *name)
	if err != nil {
		return fmt.Errorf("activation failed: %w", err)
	}

	cfg := &agent.Config{
		DeviceID:       result.DeviceID,
		APIKey:         result.APIKey,
		ServerURL:      *serverURL,
		PollInterval:   agent.DefaultPollInterval,
		PrivateKeyFile: agent.PrivateKeyPath(dir),
		Modules: agent.Modules{
			Media:      true,
			Volume:     true,
			Brightness: true,
		},
	}
	if err := agent.SaveConfig(dir, cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	logging.InfoWithComponent(logging.ComponentRegister, "Device registered",
		"device_id", result.DeviceID, "name", *name, "config", agent.ConfigPath(dir))
	return nil
}

func runStart() error {
	dir, err := agent.DefaultConfigDir()
	if err != nil {
		return err
	}

	cfg, err := agent.LoadConfig(dir)
	if err != nil {
		return fmt.Errorf("not registered? %w", err)
	}

	privateKey, err := agent.LoadPrivateKey(dir)
	if err != nil {
		return err
	}

	logging.InfoWithComponent(logging.ComponentAgent, "Starting agent",
		"device_id", cfg.DeviceID, "server", cfg.ServerURL, "version", version.String())

	client := agent.NewClient(cfg.ServerURL, cfg.APIKey)
	registry := agent.NewRegistry(cfg.Modules)
	dispatcher := agent.NewDispatcher(privateKey, registry, client)

	loop := agent.NewLoop(client, dispatcher, cfg.PollInterval)
	loop.Start(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.InfoWithComponent(logging.ComponentAgent, "Shutting down")
	loop.Stop()
	return nil
}
