package android

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/spance/devicecheck/readiness/definitions"
)

// DefaultADBPort is the port adb assumes for a bare host.
const DefaultADBPort = 5555

// ADBHandle drives one device through adb shell commands.
type ADBHandle struct {
	bridge Bridge
	serial string
}

func NewHandle(bridge Bridge, serial string) *ADBHandle {
	return &ADBHandle{bridge: bridge, serial: serial}
}

// Dial runs `adb connect` for target and returns a handle on the resulting serial.
func Dial(ctx context.Context, bridge Bridge, target string) (*ADBHandle, error) {
	msg, err := bridge.Connect(ctx, target)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("target", target).Msg(msg)
	return NewHandle(bridge, SerialFor(target)), nil
}

// SerialFor returns the serial adb assigns to a network target.
func SerialFor(target string) string {
	if strings.Contains(target, ":") {
		return target
	}
	return fmt.Sprintf("%s:%d", target, DefaultADBPort)
}

func (r *ADBHandle) Serial() string {
	return r.serial
}

func (r *ADBHandle) shell(ctx context.Context, args ...string) (string, error) {
	return r.bridge.Shell(ctx, r.serial, args...)
}

// Shell runs a raw shell command line on the device.
func (r *ADBHandle) Shell(ctx context.Context, command string) (string, error) {
	return r.shell(ctx, command)
}

// Info collects the same properties the uiautomator2 deviceInfo call reports.
// Only the display size is required; everything else is best effort.
func (r *ADBHandle) Info(ctx context.Context) (map[string]any, error) {
	width, height, err := r.WindowSize(ctx)
	if err != nil {
		return nil, err
	}
	info := map[string]any{
		definitions.KeyDisplayWidth:  width,
		definitions.KeyDisplayHeight: height,
	}

	props := map[string]string{
		definitions.KeySDKInt:      "ro.build.version.sdk",
		definitions.KeyProductName: "ro.product.name",
		definitions.KeyModel:       "ro.product.model",
		definitions.KeyBrand:       "ro.product.brand",
	}
	for key, prop := range props {
		out, err := r.shell(ctx, "getprop", prop)
		if err != nil {
			log.Debug().Err(err).Str("prop", prop).Msg("[Info] getprop failed")
			continue
		}
		value := strings.TrimSpace(out)
		if key == definitions.KeySDKInt {
			if sdk, err := strconv.Atoi(value); err == nil {
				info[key] = sdk
			}
			continue
		}
		info[key] = value
	}

	if out, err := r.shell(ctx, "wm", "density"); err == nil {
		if dpi := parseWmDensity(out); dpi > 0 {
			info[definitions.KeyDisplaySizeDpX] = width * 160 / dpi
			info[definitions.KeyDisplaySizeDpY] = height * 160 / dpi
		}
	}
	if out, err := r.shell(ctx, "dumpsys", "power"); err == nil {
		if on, ok := parseScreenOn(out); ok {
			info[definitions.KeyScreenOn] = on
		}
	}
	if out, err := r.shell(ctx, "settings", "get", "system", "user_rotation"); err == nil {
		rotation := strings.TrimSpace(out)
		info[definitions.KeyNaturalOrientation] = rotation == "0" || rotation == "2"
	}
	if pkg, err := r.CurrentApp(ctx); err == nil {
		info[definitions.KeyCurrentPackageName] = pkg
	}
	return info, nil
}

func (r *ADBHandle) WindowSize(ctx context.Context) (int, int, error) {
	out, err := r.shell(ctx, "wm", "size")
	if err != nil {
		return 0, 0, err
	}
	return parseWmSize(out)
}

func (r *ADBHandle) CurrentApp(ctx context.Context) (string, error) {
	out, err := r.shell(ctx, "dumpsys", "window")
	if err != nil {
		return "", errors.Wrap(err, "failed to run dumpsys window")
	}
	if out == "" {
		return "", errors.New("no output from dumpsys window")
	}
	pkg := parseFocusedPackage(out)
	if pkg == "" {
		return "", errors.New("no focused window in dumpsys output")
	}
	return pkg, nil
}

func (r *ADBHandle) Tap(ctx context.Context, x, y int) error {
	_, err := r.shell(ctx, "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

func (r *ADBHandle) Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error {
	_, err := r.shell(ctx,
		"input", "swipe",
		strconv.Itoa(x1), strconv.Itoa(y1),
		strconv.Itoa(x2), strconv.Itoa(y2),
		strconv.FormatInt(duration.Milliseconds(), 10),
	)
	return err
}

// keyCode maps short key names ("back", "home") to Android key codes.
func keyCode(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "KEYCODE_") {
		return name
	}
	if _, err := strconv.Atoi(name); err == nil {
		return name
	}
	return "KEYCODE_" + strings.ToUpper(name)
}

func (r *ADBHandle) PressKey(ctx context.Context, name string) error {
	_, err := r.shell(ctx, "input", "keyevent", keyCode(name))
	return err
}

func (r *ADBHandle) ScreenOn(ctx context.Context) error {
	return r.PressKey(ctx, "wakeup")
}

// Unlock dismisses a swipe-only keyguard.
func (r *ADBHandle) Unlock(ctx context.Context) error {
	if err := r.PressKey(ctx, "menu"); err != nil {
		return err
	}
	width, height, err := r.WindowSize(ctx)
	if err != nil {
		return err
	}
	return r.Swipe(ctx, width/2, height*8/10, width/2, height*2/10, 200*time.Millisecond)
}

const hierarchyPath = "/sdcard/window_dump.xml"

func (r *ADBHandle) DumpHierarchy(ctx context.Context) (string, error) {
	out, err := r.shell(ctx, "uiautomator", "dump", hierarchyPath)
	if err != nil {
		return "", err
	}
	if strings.Contains(strings.ToLower(out), "error") {
		return "", errors.Errorf("uiautomator dump: %s", strings.TrimSpace(out))
	}
	xml, err := r.shell(ctx, "cat", hierarchyPath)
	if err != nil {
		return "", err
	}
	return xml, nil
}

func (r *ADBHandle) Screenshot(ctx context.Context) (*definitions.Screenshot, error) {
	remotePath := fmt.Sprintf("/sdcard/screenshot_%s.png", uuid.New().String())
	defer func() {
		_, _ = r.shell(context.WithoutCancel(ctx), "rm", "-f", remotePath)
	}()

	out, err := r.shell(ctx, "screencap", "-p", remotePath)
	if err != nil {
		return nil, err
	}
	if strings.Contains(out, "Status: -1") || strings.Contains(out, "Failed") {
		return nil, errors.Errorf("screencap failed: %s", strings.TrimSpace(out))
	}

	var buf bytes.Buffer
	if err := r.bridge.Pull(ctx, r.serial, remotePath, &buf); err != nil {
		return nil, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, errors.Wrap(err, "decode screenshot")
	}
	return &definitions.Screenshot{
		Data:   buf.Bytes(),
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}
