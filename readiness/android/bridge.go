package android

import (
	"context"
	"io"

	"github.com/spance/devicecheck/readiness/definitions"
)

// Bridge is the adb transport used by ADBHandle.
type Bridge interface {
	Connect(ctx context.Context, address string) (string, error)
	Disconnect(ctx context.Context, address string) (string, error)
	ListDevices(ctx context.Context) ([]definitions.DeviceInfo, error)
	Shell(ctx context.Context, serial string, args ...string) (string, error)
	Pull(ctx context.Context, serial, remotePath string, dest io.Writer) error
}
