package android

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/spance/devicecheck/constants"
	"github.com/spance/devicecheck/readiness/definitions"
)

// ExecBridge drives the adb binary.
type ExecBridge struct {
	ADBPath string
	Timeout time.Duration
}

func NewExecBridge(path string) *ExecBridge {
	if path == "" {
		path = constants.DefaultADBPath
	}
	return &ExecBridge{ADBPath: path, Timeout: constants.DefaultCommandTimeout}
}

func (r *ExecBridge) command(ctx context.Context, args ...string) (*exec.Cmd, context.CancelFunc) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	log.Debug().Str("cmd", fmt.Sprintf("run cmd: %s %s", r.ADBPath, strings.Join(args, " "))).Msg("")
	return exec.CommandContext(ctx, r.ADBPath, args...), cancel
}

func (r *ExecBridge) run(ctx context.Context, args ...string) (string, error) {
	cmd, cancel := r.command(ctx, args...)
	defer cancel()

	rawOutput, err := cmd.CombinedOutput()
	output := string(rawOutput)
	if err != nil {
		return output, errors.Wrapf(err, "adb %s: %s", strings.Join(args, " "), strings.TrimSpace(output))
	}
	log.Debug().Str("output", output).Msg("raw output")
	return output, nil
}

func (r *ExecBridge) Connect(ctx context.Context, address string) (string, error) {
	output, err := r.run(ctx, "connect", address)
	if err != nil {
		log.Error().Err(err).Msg("[Connect] run cmd failed")
		return fmt.Sprintf("Connect error: %v", err), err
	}
	return interpretConnect(address, output)
}

// interpretConnect maps `adb connect` output to a result. adb exits 0 even
// when the connection is refused, so only the text tells.
func interpretConnect(address, output string) (string, error) {
	lowerOutput := strings.ToLower(output)

	if strings.Contains(lowerOutput, "already connected") {
		return fmt.Sprintf("Already connected to %s", address), nil
	}
	if strings.Contains(lowerOutput, "failed") || strings.Contains(lowerOutput, "unable") ||
		strings.Contains(lowerOutput, "cannot") {
		msg := fmt.Sprintf("Connection error: %s", strings.TrimSpace(output))
		return msg, errors.New(msg)
	}
	if strings.Contains(lowerOutput, "connected") {
		return fmt.Sprintf("Connected to %s", address), nil
	}
	msg := fmt.Sprintf("Connection error: %s", strings.TrimSpace(output))
	return msg, errors.New(msg)
}

func (r *ExecBridge) Disconnect(ctx context.Context, address string) (string, error) {
	cmdArgs := []string{"disconnect"}
	if len(address) > 0 {
		cmdArgs = append(cmdArgs, address)
	}
	output, err := r.run(ctx, cmdArgs...)
	if err != nil {
		log.Error().Err(err).Msg("[Disconnect] run cmd failed")
		return fmt.Sprintf("Disconnect error: %v", err), err
	}
	return strings.TrimSpace(output), nil
}

func (r *ExecBridge) ListDevices(ctx context.Context) ([]definitions.DeviceInfo, error) {
	output, err := r.run(ctx, "devices", "-l")
	if err != nil {
		log.Error().Err(err).Msg("[ListDevices] run cmd failed")
		return nil, err
	}
	return parseDeviceList(output), nil
}

func (r *ExecBridge) Shell(ctx context.Context, serial string, args ...string) (string, error) {
	var cmdArgs []string
	if len(serial) > 0 {
		cmdArgs = append(cmdArgs, "-s", serial)
	}
	cmdArgs = append(cmdArgs, "shell")
	cmdArgs = append(cmdArgs, args...)
	return r.run(ctx, cmdArgs...)
}

func (r *ExecBridge) Pull(ctx context.Context, serial, remotePath string, dest io.Writer) error {
	var cmdArgs []string
	if len(serial) > 0 {
		cmdArgs = append(cmdArgs, "-s", serial)
	}
	cmdArgs = append(cmdArgs, "exec-out", "cat", remotePath)

	cmd, cancel := r.command(ctx, cmdArgs...)
	defer cancel()

	var stderr strings.Builder
	cmd.Stdout = dest
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "adb pull %s: %s", remotePath, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// parseDeviceList parses `adb devices -l` output.
func parseDeviceList(output string) []definitions.DeviceInfo {
	var devices []definitions.DeviceInfo
	scanner := bufio.NewScanner(strings.NewReader(output))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		deviceID := parts[0]
		var connType definitions.ConnectionType
		if strings.Contains(deviceID, ":") {
			connType = definitions.Remote
		} else {
			connType = definitions.USB
		}

		var model string
		for _, part := range parts[2:] {
			if strings.HasPrefix(part, "model:") {
				model = strings.SplitN(part, ":", 2)[1]
				break
			}
		}

		devices = append(devices, definitions.DeviceInfo{
			DeviceID:       deviceID,
			Status:         parts[1],
			ConnectionType: connType,
			Model:          model,
		})
	}

	return devices
}
