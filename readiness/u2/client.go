package u2

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/spance/devicecheck/readiness/definitions"
)

// Client talks to atx-agent over its HTTP API.
type Client struct {
	http    *http.Client
	baseURL string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Dial returns a client for baseURL once the agent answers /version.
func Dial(ctx context.Context, baseURL string, timeout time.Duration) (*Client, error) {
	c := NewClient(baseURL, timeout)
	version, err := c.Version(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("url", c.baseURL).Str("version", version).Msg("[u2] agent reachable")
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("[u2] request")

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errors.Errorf("server error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	return c.do(req)
}

// Version returns the atx-agent version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// call invokes a uiautomator2 JSON-RPC method and decodes its result into out.
func (c *Client) call(ctx context.Context, method string, out any, params ...any) error {
	if params == nil {
		params = []any{}
	}
	payload, err := sonic.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.New().String(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jsonrpc/0", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return errors.Wrapf(err, "jsonrpc %s", method)
	}

	var resp rpcResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return errors.Wrapf(err, "decode %s response", method)
	}
	if resp.Error != nil {
		return errors.Wrapf(resp.Error, "jsonrpc %s", method)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(resp.Result, out); err != nil {
		return errors.Wrapf(err, "decode %s result", method)
	}
	return nil
}

func (c *Client) Info(ctx context.Context) (map[string]any, error) {
	var info map[string]any
	if err := c.call(ctx, "deviceInfo", &info); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Client) WindowSize(ctx context.Context) (int, int, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return 0, 0, err
	}
	p := definitions.ParseProperties(info)
	if !p.HasDisplaySize() {
		return 0, 0, errors.New("device info has no display size")
	}
	return p.DisplayWidth, p.DisplayHeight, nil
}

func (c *Client) CurrentApp(ctx context.Context) (string, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return "", err
	}
	pkg := definitions.ParseProperties(info).CurrentPackageName
	if pkg == "" {
		return "", errors.New("device info has no current package")
	}
	return pkg, nil
}

func (c *Client) Tap(ctx context.Context, x, y int) error {
	return c.call(ctx, "click", nil, x, y)
}

// Swipe moves in steps of 5ms, the way uiautomator2 converts a duration.
func (c *Client) Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error {
	steps := max(2, int(duration.Seconds()*200))
	return c.call(ctx, "swipe", nil, x1, y1, x2, y2, steps)
}

func (c *Client) PressKey(ctx context.Context, name string) error {
	return c.call(ctx, "pressKey", nil, strings.ToLower(strings.TrimSpace(name)))
}

func (c *Client) ScreenOn(ctx context.Context) error {
	return c.call(ctx, "wakeUp", nil)
}

// Unlock wakes the screen and swipes diagonally across it.
func (c *Client) Unlock(ctx context.Context) error {
	if err := c.ScreenOn(ctx); err != nil {
		return err
	}
	width, height, err := c.WindowSize(ctx)
	if err != nil {
		return err
	}
	return c.Swipe(ctx, width/10, height*9/10, width*9/10, height/10, 100*time.Millisecond)
}

func (c *Client) DumpHierarchy(ctx context.Context) (string, error) {
	var xml string
	if err := c.call(ctx, "dumpWindowHierarchy", &xml, false, 50); err != nil {
		return "", err
	}
	return xml, nil
}

// Shell runs a command through the agent's /shell endpoint.
func (c *Client) Shell(ctx context.Context, command string) (string, error) {
	form := url.Values{"command": {command}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/shell", strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	var resp shellResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return "", errors.Wrap(err, "decode shell response")
	}
	if resp.Error != "" {
		return resp.Output, errors.Errorf("shell %q: %s", command, resp.Error)
	}
	if resp.ExitCode != 0 {
		return resp.Output, errors.Errorf("shell %q exited with %d", command, resp.ExitCode)
	}
	return resp.Output, nil
}

func (c *Client) Screenshot(ctx context.Context) (*definitions.Screenshot, error) {
	data, err := c.get(ctx, "/screenshot/0")
	if err != nil {
		return nil, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode screenshot")
	}
	return &definitions.Screenshot{
		Data:   data,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// Close drops idle keep-alive connections to the agent.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
