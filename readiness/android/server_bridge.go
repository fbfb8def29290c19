package android

import (
	"context"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/httprunner/httprunner/v5/pkg/gadb"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/spance/devicecheck/readiness/definitions"
)

// ServerBridge speaks the adb server protocol directly, without the adb binary.
type ServerBridge struct {
	client gadb.Client
}

func NewServerBridge() (*ServerBridge, error) {
	client, err := gadb.NewClient()
	if err != nil {
		return nil, errors.Wrap(err, "init adb server client")
	}
	return &ServerBridge{client: client}, nil
}

// await runs fn and gives up when ctx is done; gadb calls take no context.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		return r.val, r.err
	}
}

func splitTarget(address string) (string, int, error) {
	if !strings.Contains(address, ":") {
		return address, DefaultADBPort, nil
	}
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return "", 0, errors.Wrapf(err, "invalid adb address %q", address)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, errors.Errorf("invalid adb port %q", portStr)
	}
	return host, port, nil
}

func (r *ServerBridge) Connect(ctx context.Context, address string) (string, error) {
	host, port, err := splitTarget(address)
	if err != nil {
		return err.Error(), err
	}
	log.Debug().Str("address", address).Msg("[Connect] adb server connect")
	if _, err := await(ctx, func() (struct{}, error) {
		return struct{}{}, r.client.Connect(host, port)
	}); err != nil {
		return "Connect error: " + err.Error(), errors.Wrapf(err, "adb connect %s", address)
	}
	return "Connected to " + address, nil
}

func (r *ServerBridge) Disconnect(ctx context.Context, address string) (string, error) {
	if address == "" {
		err := errors.New("adb server backend needs an explicit address to disconnect")
		return err.Error(), err
	}
	host, port, err := splitTarget(address)
	if err != nil {
		return err.Error(), err
	}
	if _, err := await(ctx, func() (struct{}, error) {
		return struct{}{}, r.client.Disconnect(host, port)
	}); err != nil {
		return "Disconnect error: " + err.Error(), errors.Wrapf(err, "adb disconnect %s", address)
	}
	return "disconnected " + address, nil
}

func (r *ServerBridge) ListDevices(ctx context.Context) ([]definitions.DeviceInfo, error) {
	devs, err := await(ctx, r.client.DeviceList)
	if err != nil {
		return nil, errors.Wrap(err, "list adb devices")
	}
	devices := make([]definitions.DeviceInfo, 0, len(devs))
	for _, dev := range devs {
		if dev == nil {
			continue
		}
		serial := strings.TrimSpace(dev.Serial())
		if serial == "" {
			continue
		}
		status := "unknown"
		if state, err := dev.State(); err == nil {
			status = string(state)
		}
		connType := definitions.USB
		if strings.Contains(serial, ":") {
			connType = definitions.Remote
		}
		devices = append(devices, definitions.DeviceInfo{
			DeviceID:       serial,
			Status:         status,
			ConnectionType: connType,
		})
	}
	return devices, nil
}

func (r *ServerBridge) device(ctx context.Context, serial string) (*gadb.Device, error) {
	devs, err := await(ctx, r.client.DeviceList)
	if err != nil {
		return nil, errors.Wrap(err, "list adb devices")
	}
	target := strings.TrimSpace(serial)
	for _, d := range devs {
		if d == nil {
			continue
		}
		if target == "" || strings.TrimSpace(d.Serial()) == target {
			return d, nil
		}
	}
	return nil, errors.Errorf("device %s not found", serial)
}

func (r *ServerBridge) Shell(ctx context.Context, serial string, args ...string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("adb server: empty shell command")
	}
	dev, err := r.device(ctx, serial)
	if err != nil {
		return "", err
	}
	log.Debug().Str("serial", serial).Strs("args", args).Msg("[Shell] adb server shell")
	out, err := await(ctx, func() (string, error) {
		return dev.RunShellCommand(args[0], args[1:]...)
	})
	if err != nil {
		return out, errors.Wrapf(err, "adb shell %s", strings.Join(args, " "))
	}
	return out, nil
}

func (r *ServerBridge) Pull(ctx context.Context, serial, remotePath string, dest io.Writer) error {
	dev, err := r.device(ctx, serial)
	if err != nil {
		return err
	}
	_, err = await(ctx, func() (struct{}, error) {
		return struct{}{}, dev.Pull(remotePath, dest)
	})
	return errors.Wrapf(err, "adb pull %s", remotePath)
}
