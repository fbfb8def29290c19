package constants

import "time"

const (
	AppName = "devicecheck"

	// DefaultDevicePort is the ADB port cloud providers such as GeeLark expose.
	DefaultDevicePort = 20624
	DefaultApp        = "com.instagram.android"
	DefaultADBPath    = "adb"

	BackendExec   = "exec"
	BackendServer = "server"

	EnvPrefix = "DEVICECHECK_"

	DefaultHistoryLimit   = 20
	DefaultCommandTimeout = 5 * time.Second
)
