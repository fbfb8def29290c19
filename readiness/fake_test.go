package readiness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spance/devicecheck/readiness/definitions"
)

var errInjected = errors.New("injected failure")

type swipeCall struct {
	X1, Y1, X2, Y2 int
}

// fakeHandle is a scriptable in-memory device.
type fakeHandle struct {
	mu sync.Mutex

	info      map[string]any
	infoErr   error
	infoCalls int
	// wakeTurnsOn flips screenOn to true on ScreenOn.
	wakeTurnsOn bool

	failAll  bool
	failKeys map[string]bool
	dump     string
	shell    map[string]string

	swipes   []swipeCall
	taps     [][2]int
	keys     []string
	calls    []string
	closed   bool
	panicTap bool
}

func newFakeHandle(width, height int, screenOn bool) *fakeHandle {
	return &fakeHandle{
		info: map[string]any{
			definitions.KeyDisplayWidth:       float64(width),
			definitions.KeyDisplayHeight:      float64(height),
			definitions.KeyScreenOn:           screenOn,
			definitions.KeySDKInt:             float64(30),
			definitions.KeyCurrentPackageName: "com.instagram.android",
		},
		dump: `<hierarchy><node index="0"><node index="1"/><node index="2"/></node></hierarchy>`,
	}
}

func (f *fakeHandle) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeHandle) Info(context.Context) (map[string]any, error) {
	f.record("info")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infoCalls++
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	out := make(map[string]any, len(f.info))
	for k, v := range f.info {
		out[k] = v
	}
	return out, nil
}

func (f *fakeHandle) Swipe(_ context.Context, x1, y1, x2, y2 int, _ time.Duration) error {
	f.record("swipe")
	if f.failAll {
		return errInjected
	}
	f.swipes = append(f.swipes, swipeCall{x1, y1, x2, y2})
	return nil
}

func (f *fakeHandle) Tap(_ context.Context, x, y int) error {
	f.record("tap")
	if f.panicTap {
		panic("tap exploded")
	}
	if f.failAll {
		return errInjected
	}
	f.taps = append(f.taps, [2]int{x, y})
	return nil
}

func (f *fakeHandle) PressKey(_ context.Context, name string) error {
	f.record("key " + name)
	if f.failAll || f.failKeys[name] {
		return errInjected
	}
	f.keys = append(f.keys, name)
	return nil
}

func (f *fakeHandle) DumpHierarchy(context.Context) (string, error) {
	f.record("dump")
	if f.failAll {
		return "", errInjected
	}
	return f.dump, nil
}

func (f *fakeHandle) ScreenOn(context.Context) error {
	f.record("screen on")
	if f.wakeTurnsOn {
		f.mu.Lock()
		f.info[definitions.KeyScreenOn] = true
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeHandle) Unlock(context.Context) error {
	f.record("unlock")
	return nil
}

func (f *fakeHandle) WindowSize(context.Context) (int, int, error) {
	f.record("window size")
	if f.failAll {
		return 0, 0, errInjected
	}
	p := definitions.ParseProperties(f.info)
	return p.DisplayWidth, p.DisplayHeight, nil
}

func (f *fakeHandle) CurrentApp(context.Context) (string, error) {
	f.record("current app")
	if f.failAll {
		return "", errInjected
	}
	return "com.instagram.android", nil
}

// shellHandle adds a shell to fakeHandle.
type shellHandle struct {
	*fakeHandle
}

func (s shellHandle) Shell(_ context.Context, command string) (string, error) {
	s.record("shell " + command)
	out, ok := s.shell[command]
	if !ok {
		return "", fmt.Errorf("unexpected command %q", command)
	}
	return out, nil
}

func (s shellHandle) Close() error {
	s.closed = true
	return nil
}

// invocations records connector calls, which happen on resolver goroutines.
type invocations struct {
	mu    sync.Mutex
	names []string
}

func (i *invocations) add(name string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.names = append(i.names, name)
}

func (i *invocations) list() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.names...)
}

func staticStrategy(name string, invoked *invocations, fn Connector) Strategy {
	return Strategy{
		Name:   name,
		Kind:   definitions.Remote,
		Target: func(addr definitions.Address) string { return name + "://" + addr.String() },
		Connect: func(ctx context.Context, target string) (Handle, error) {
			invoked.add(name)
			return fn(ctx, target)
		},
	}
}

func failing(err error) Connector {
	return func(context.Context, string) (Handle, error) { return nil, err }
}

func succeeding(h Handle) Connector {
	return func(context.Context, string) (Handle, error) { return h, nil }
}

// hanging ignores cancellation entirely.
func hanging(release <-chan struct{}) Connector {
	return func(context.Context, string) (Handle, error) {
		<-release
		return nil, errors.New("released")
	}
}
