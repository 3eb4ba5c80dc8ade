package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uidriver/pkg/agent"
	"github.com/devicelab-dev/uidriver/pkg/config"
	"github.com/devicelab-dev/uidriver/pkg/device"
)

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "Probe the on-device agent and wait until it is ready",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "How long to wait for readiness",
		},
		&cli.StringFlag{
			Name:  "min-version",
			Usage: "Fail if the agent version is below this",
		},
	},
	Action: runStatus,
}

var screenshotCommand = &cli.Command{
	Name:  "screenshot",
	Usage: "Capture a screenshot and write it to a file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   "Output file (default: <home>/screenshots/<timestamp>.png)",
		},
	},
	Action: runScreenshot,
}

var tapCommand = &cli.Command{
	Name:      "tap",
	Usage:     "Tap the element matched by a selector query",
	ArgsUsage: "<query>",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "duration",
			Usage: "Press duration (also selects long-press when > 1s)",
		},
		&cli.BoolFlag{
			Name:  "double",
			Usage: "Double-tap instead of a single tap",
		},
	},
	Action: runTap,
}

var installCommand = &cli.Command{
	Name:      "install",
	Usage:     "Install an app binary on the device",
	ArgsUsage: "<path-to-binary>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "ensure",
			Usage: "Skip installation if the app is already present",
		},
	},
	Action: runInstall,
}

var appCommand = &cli.Command{
	Name:      "app",
	Usage:     "App lifecycle: start, stop, uninstall, clear",
	ArgsUsage: "<start|stop|uninstall|clear> <app-id-or-path>",
	Action:    runApp,
}

var forwardCommand = &cli.Command{
	Name:      "forward",
	Usage:     "Forward a host port to a device port",
	ArgsUsage: "<local-port> <device-port>",
	Action:    runForward,
}

func runStatus(c *cli.Context) error {
	d, err := buildDevice(c)
	if err != nil {
		return err
	}

	timeout := c.Duration("timeout")
	if err := d.WaitUntilReady(c.Context, timeout); err != nil {
		return err
	}

	prober := agent.NewProber(d.Transport())
	if min := c.String("min-version"); min != "" {
		if err := prober.CheckVersion(c.Context, min); err != nil {
			return err
		}
	}

	status, err := prober.Status(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("Agent at %s is ready", d.Endpoint().BaseURL())
	if status.Version != "" {
		fmt.Printf(" (version %s)", status.Version)
	}
	fmt.Println()
	return nil
}

func runScreenshot(c *cli.Context) error {
	d, err := buildDevice(c)
	if err != nil {
		return err
	}

	data, err := d.Screenshot(c.Context)
	if err != nil {
		return err
	}

	out := screenshotPath(c.String("out"))
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("Saved screenshot to %s (%d bytes)\n", out, len(data))
	return nil
}

// screenshotPath resolves the output file, defaulting to a timestamped
// name under <home>/screenshots.
func screenshotPath(out string) string {
	if out != "" {
		return out
	}
	name := time.Now().Format("20060102-150405") + ".png"
	return filepath.Join(config.GetScreenshotsDir(), name)
}

func runTap(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("tap requires exactly one selector query argument")
	}
	query := device.Query(c.Args().First())
	if err := device.ValidateQuery(query); err != nil {
		return err
	}

	d, err := buildDevice(c)
	if err != nil {
		return err
	}

	var opts *device.GestureOptions
	if dur := c.Duration("duration"); dur != 0 {
		opts = &device.GestureOptions{Duration: dur}
	}

	if c.Bool("double") {
		return d.DoubleTap(c.Context, query, opts)
	}
	if dur := c.Duration("duration"); dur > time.Second {
		return d.LongPress(c.Context, query, opts)
	}
	return d.Tap(c.Context, query, opts)
}

func runInstall(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("install requires exactly one binary path argument")
	}
	path := c.Args().First()
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("app binary %s: %w", path, err)
	}

	d, err := buildDevice(c)
	if err != nil {
		return err
	}

	if c.Bool("ensure") {
		return d.EnsureAppInstalled(c.Context, path)
	}
	return d.InstallApp(c.Context, path)
}

func runApp(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("app requires an action and an app reference")
	}
	action, ref := c.Args().Get(0), c.Args().Get(1)

	d, err := buildDevice(c)
	if err != nil {
		return err
	}

	switch action {
	case "start":
		return d.StartApp(c.Context, ref)
	case "stop":
		return d.StopApp(c.Context, ref)
	case "uninstall":
		return d.UninstallApp(c.Context, ref)
	case "clear":
		return d.ClearAppData(c.Context, ref)
	default:
		return fmt.Errorf("unknown app action %q (want start, stop, uninstall or clear)", action)
	}
}

func runForward(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("forward requires a local port and a device port")
	}
	localPort, err := parsePort(c.Args().Get(0))
	if err != nil {
		return err
	}
	devicePort, err := parsePort(c.Args().Get(1))
	if err != nil {
		return err
	}

	d, err := buildDevice(c)
	if err != nil {
		return err
	}
	if err := d.PortForward(c.Context, localPort, devicePort); err != nil {
		return err
	}
	fmt.Printf("Forwarding localhost:%d -> device:%d\n", localPort, devicePort)
	return nil
}

func parsePort(s string) (int, error) {
	var port int
	if _, err := fmt.Sscanf(s, "%d", &port); err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}
