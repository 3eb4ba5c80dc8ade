// Package cli provides the command-line interface for uidriver.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uidriver/pkg/agent"
	"github.com/devicelab-dev/uidriver/pkg/config"
	"github.com/devicelab-dev/uidriver/pkg/device"
	"github.com/devicelab-dev/uidriver/pkg/logger"
	"github.com/devicelab-dev/uidriver/pkg/managed"
	"github.com/devicelab-dev/uidriver/pkg/platform/android"
	"github.com/devicelab-dev/uidriver/pkg/platform/ios"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config.yaml (defaults to ./config.yaml)",
		EnvVars: []string{"UIDRIVER_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "platform",
		Aliases: []string{"p"},
		Usage:   "Platform to target (ios, android)",
		EnvVars: []string{"UIDRIVER_PLATFORM"},
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"udid"},
		Usage:   "Device serial or simulator UDID",
		EnvVars: []string{"UIDRIVER_DEVICE"},
	},
	&cli.StringFlag{
		Name:    "host",
		Usage:   "Agent host",
		EnvVars: []string{"UIDRIVER_AGENT_HOST"},
	},
	&cli.IntFlag{
		Name:    "port",
		Usage:   "Agent port",
		EnvVars: []string{"UIDRIVER_AGENT_PORT"},
	},
	&cli.StringFlag{
		Name:  "prefix",
		Usage: "Agent URL path prefix (e.g. /wd/hub)",
	},
	&cli.BoolFlag{
		Name:    "managed",
		Usage:   "Route operations through a coordinator",
		EnvVars: []string{"UIDRIVER_MANAGED"},
	},
	&cli.StringFlag{
		Name:  "coordinator-host",
		Usage: "Coordinator host (managed mode)",
	},
	&cli.IntFlag{
		Name:  "coordinator-port",
		Usage: "Coordinator port (managed mode)",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging to stderr",
		EnvVars: []string{"UIDRIVER_VERBOSE"},
	},
}

// Execute runs the CLI.
func Execute() {
	app := &cli.App{
		Name:    "uidriver",
		Usage:   "Device communication client for on-device UI automation agents",
		Version: Version,
		Description: `uidriver talks to the automation agent running on an Android device
or iOS simulator: lifecycle, gestures, screenshots and readiness.

Examples:
  uidriver status
  uidriver -p android tap "button marked:'OK'"
  uidriver screenshot --out shot.png
  uidriver install app.apk`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			statusCommand,
			screenshotCommand,
			tapCommand,
			installCommand,
			appCommand,
			forwardCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file and overlays the global flags on it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, c)
	return cfg, nil
}

// applyFlags overlays set command-line flags on top of the loaded config.
func applyFlags(cfg *config.Config, c *cli.Context) {
	if v := c.String("platform"); v != "" {
		cfg.Platform = v
	}
	if v := c.String("device"); v != "" {
		cfg.Device = v
	}
	if v := c.String("host"); v != "" {
		cfg.AgentHost = v
	}
	if v := c.Int("port"); v != 0 {
		cfg.AgentPort = v
	}
	if v := c.String("prefix"); v != "" {
		cfg.AgentPrefix = v
	}
	if c.IsSet("managed") {
		cfg.Managed = c.Bool("managed")
	}
	if v := c.String("coordinator-host"); v != "" {
		cfg.CoordinatorHost = v
	}
	if v := c.Int("coordinator-port"); v != 0 {
		cfg.CoordinatorPort = v
	}
}

// buildDevice wires a Device from the config: endpoint, transport, platform
// backend and (in managed mode) the coordinator.
func buildDevice(c *cli.Context) (*device.Device, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	if c.Bool("verbose") {
		logger.InitConsole(os.Stderr)
	} else if cfg.LogPath != "" {
		if err := logger.Init(cfg.LogPath); err != nil {
			return nil, err
		}
	}

	endpoint, err := agent.NewEndpoint(cfg.AgentHost, cfg.AgentPort, cfg.AgentPrefix)
	if err != nil {
		return nil, err
	}
	policy := agent.RetryPolicy{
		MaxRetries:     cfg.MaxRetries,
		RetryInterval:  cfg.RetryInterval,
		RequestTimeout: cfg.RequestTimeout,
	}
	transport := agent.NewTransport(endpoint, policy)

	var backend device.Platform
	switch cfg.Platform {
	case "android":
		adb, err := android.NewADB(cfg.Device)
		if err != nil {
			return nil, err
		}
		backend, err = android.New(adb, transport)
		if err != nil {
			return nil, err
		}
	case "ios":
		backend, err = ios.New(cfg.Device, transport)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported platform %q (want android or ios)", cfg.Platform)
	}

	exec := device.NewExecContext(nil)
	if cfg.Managed {
		coordEndpoint, err := agent.NewEndpoint(cfg.CoordinatorHost, cfg.CoordinatorPort, "")
		if err != nil {
			return nil, fmt.Errorf("coordinator endpoint: %w", err)
		}
		exec.SetCoordinator(managed.New(coordEndpoint, policy))
		exec.SetManaged(true)
	}

	id := cfg.Device
	if id == "" {
		id = "default"
	}
	return device.New(device.Config{
		ID:       id,
		Endpoint: endpoint,
		Policy:   policy,
		Platform: backend,
		Exec:     exec,
	})
}
