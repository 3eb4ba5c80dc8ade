// Package android implements the Android platform backend: app lifecycle
// through adb, gestures and screenshots through the on-device agent.
package android

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ADB wraps the adb binary for one device serial.
type ADB struct {
	serial  string
	adbPath string
}

// NewADB creates an ADB handle for the given serial. If serial is empty,
// the first connected device is used.
func NewADB(serial string) (*ADB, error) {
	adbPath, err := findADB()
	if err != nil {
		return nil, err
	}

	if serial == "" {
		serial, err = detectSerial(adbPath)
		if err != nil {
			return nil, fmt.Errorf("no device specified and auto-detect failed: %w", err)
		}
	}

	a := &ADB{serial: serial, adbPath: adbPath}
	if err := a.waitForDevice(5 * time.Second); err != nil {
		return nil, fmt.Errorf("device not found: %w", err)
	}
	return a, nil
}

// Serial returns the device serial number.
func (a *ADB) Serial() string { return a.serial }

// Shell executes a shell command on the device.
func (a *ADB) Shell(cmd string) (string, error) {
	return a.run("shell", cmd)
}

// Install installs an APK on the device.
func (a *ADB) Install(apkPath string) error {
	_, err := a.run("install", "-r", "-g", apkPath)
	return err
}

// Uninstall removes a package from the device.
func (a *ADB) Uninstall(pkg string) error {
	_, err := a.run("uninstall", pkg)
	return err
}

// IsInstalled checks if a package is installed.
func (a *ADB) IsInstalled(pkg string) bool {
	out, err := a.Shell("pm list packages " + pkg)
	if err != nil {
		return false
	}
	return strings.Contains(out, "package:"+pkg)
}

// ClearData resets a package's stored data.
func (a *ADB) ClearData(pkg string) error {
	out, err := a.Shell("pm clear " + pkg)
	if err != nil {
		return err
	}
	if !strings.Contains(out, "Success") {
		return fmt.Errorf("pm clear %s: %s", pkg, strings.TrimSpace(out))
	}
	return nil
}

// Forward creates a port forward from local to device.
func (a *ADB) Forward(localPort, devicePort int) error {
	_, err := a.run("forward", fmt.Sprintf("tcp:%d", localPort), fmt.Sprintf("tcp:%d", devicePort))
	return err
}

// RemoveForward removes a port forward.
func (a *ADB) RemoveForward(localPort int) error {
	_, err := a.run("forward", "--remove", fmt.Sprintf("tcp:%d", localPort))
	return err
}

// run executes an adb command against this device.
func (a *ADB) run(args ...string) (string, error) {
	cmdArgs := make([]string, 0, len(args)+2)
	if a.serial != "" {
		cmdArgs = append(cmdArgs, "-s", a.serial)
	}
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.Command(a.adbPath, cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = stdout.String()
		}
		return "", fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, errMsg)
	}
	return stdout.String(), nil
}

// waitForDevice waits for the device to be available.
func (a *ADB) waitForDevice(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if a.isConnected() {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for device %s", a.serial)
}

func (a *ADB) isConnected() bool {
	out, err := a.run("get-state")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "device"
}

// detectSerial finds the first connected device serial.
func detectSerial(adbPath string) (string, error) {
	cmd := exec.Command(adbPath, "devices")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return firstSerial(string(out))
}

// firstSerial parses `adb devices` output and returns the first serial in
// the "device" state.
func firstSerial(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 && parts[1] == "device" {
			return parts[0], nil
		}
	}
	return "", fmt.Errorf("no connected devices found")
}

// findADB locates the adb binary.
func findADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("adb not found in PATH; ensure Android SDK is installed")
}
