package readiness

import (
	"context"
	"time"

	"github.com/spance/devicecheck/readiness/definitions"
)

// Handle is a live session with one device.
type Handle interface {
	Info(ctx context.Context) (map[string]any, error)
	Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error
	Tap(ctx context.Context, x, y int) error
	PressKey(ctx context.Context, name string) error
	DumpHierarchy(ctx context.Context) (string, error)
	ScreenOn(ctx context.Context) error
	Unlock(ctx context.Context) error
	WindowSize(ctx context.Context) (int, int, error)
	CurrentApp(ctx context.Context) (string, error)
}

// Sheller is implemented by handles that can run shell commands on the device.
type Sheller interface {
	Shell(ctx context.Context, command string) (string, error)
}

type Screenshotter interface {
	Screenshot(ctx context.Context) (*definitions.Screenshot, error)
}

// PackageQuerier answers whether a package is installed on the device behind h.
type PackageQuerier interface {
	HasPackage(ctx context.Context, h Handle, pkg string) (bool, error)
}
