package readiness

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spance/devicecheck/readiness/definitions"
	"github.com/spance/devicecheck/readiness/u2"
)

type refusingBridge struct{}

func (refusingBridge) Connect(context.Context, string) (string, error) {
	return "", errors.New("failed to connect: Connection refused")
}

func (refusingBridge) Disconnect(context.Context, string) (string, error) { return "", nil }

func (refusingBridge) ListDevices(context.Context) ([]definitions.DeviceInfo, error) {
	return nil, nil
}

func (refusingBridge) Shell(context.Context, string, ...string) (string, error) { return "", nil }

func (refusingBridge) Pull(context.Context, string, string, io.Writer) error { return nil }

func TestDefaultStrategies(t *testing.T) {
	strategies := DefaultStrategies(TransportOptions{Bridge: refusingBridge{}})
	addr := definitions.Address{Host: "128.14.109.187", Port: 20624}

	want := []struct {
		name, target string
		kind         definitions.ConnectionType
	}{
		{"ADB WiFi", "128.14.109.187:20624", definitions.WiFi},
		{"HTTP Direct (7912)", "http://128.14.109.187:7912", definitions.HTTP},
		{"Simple IP", "128.14.109.187", definitions.Remote},
	}
	if len(strategies) != len(want) {
		t.Fatalf("expected %d strategies, got %d", len(want), len(strategies))
	}
	for i, w := range want {
		s := strategies[i]
		if s.Name != w.name || s.Target(addr) != w.target || s.Kind != w.kind {
			t.Errorf("strategy %d = %s %s %s, want %+v", i, s.Name, s.Target(addr), s.Kind, w)
		}
	}
}

func TestDefaultStrategiesHTTPPort(t *testing.T) {
	strategies := DefaultStrategies(TransportOptions{HTTPPort: 9008})
	if strategies[1].Name != "HTTP Direct (9008)" {
		t.Errorf("unexpected name %s", strategies[1].Name)
	}
	if got := strategies[1].Target(definitions.Address{Host: "::1", Port: 1}); got != "http://[::1]:9008" {
		t.Errorf("unexpected target %s", got)
	}
}

func TestADBConnectorError(t *testing.T) {
	h, err := ADBConnector(refusingBridge{})(context.Background(), "1.2.3.4:5555")
	if err == nil {
		t.Fatal("expected error")
	}
	if h != nil {
		t.Error("a failed connect must return a nil interface")
	}
}

func TestHTTPConnector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/version" {
			_, _ = io.WriteString(w, "0.10.0")
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	h, err := HTTPConnector(time.Second)(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := h.(*u2.Client); !ok {
		t.Errorf("expected a u2 client, got %T", h)
	}
	if _, ok := h.(Sheller); !ok {
		t.Error("u2 client should expose a shell")
	}
}
