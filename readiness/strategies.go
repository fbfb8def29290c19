package readiness

import (
	"context"
	"fmt"
	"time"

	"github.com/spance/devicecheck/readiness/android"
	"github.com/spance/devicecheck/readiness/definitions"
	"github.com/spance/devicecheck/readiness/u2"
)

// Connector turns a strategy target into a live handle.
type Connector func(ctx context.Context, target string) (Handle, error)

// Strategy is one way of reaching a device. Strategies are tried in slice order.
type Strategy struct {
	Name    string
	Kind    definitions.ConnectionType
	Target  func(addr definitions.Address) string
	Connect Connector
}

type TransportOptions struct {
	Bridge      android.Bridge
	HTTPPort    int
	HTTPTimeout time.Duration
}

// DefaultStrategies returns ADB WiFi, HTTP Direct and Simple IP, in that order.
func DefaultStrategies(opts TransportOptions) []Strategy {
	httpPort := opts.HTTPPort
	if httpPort <= 0 {
		httpPort = u2.DefaultPort
	}
	return []Strategy{
		{
			Name:    "ADB WiFi",
			Kind:    definitions.WiFi,
			Target:  func(addr definitions.Address) string { return addr.String() },
			Connect: ADBConnector(opts.Bridge),
		},
		{
			Name: fmt.Sprintf("HTTP Direct (%d)", httpPort),
			Kind: definitions.HTTP,
			Target: func(addr definitions.Address) string {
				return fmt.Sprintf("http://%s", definitions.Address{Host: addr.Host, Port: httpPort})
			},
			Connect: HTTPConnector(opts.HTTPTimeout),
		},
		{
			Name:    "Simple IP",
			Kind:    definitions.Remote,
			Target:  func(addr definitions.Address) string { return addr.Host },
			Connect: ADBConnector(opts.Bridge),
		},
	}
}

func ADBConnector(bridge android.Bridge) Connector {
	return func(ctx context.Context, target string) (Handle, error) {
		h, err := android.Dial(ctx, bridge, target)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
}

func HTTPConnector(timeout time.Duration) Connector {
	return func(ctx context.Context, target string) (Handle, error) {
		c, err := u2.Dial(ctx, target, timeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
