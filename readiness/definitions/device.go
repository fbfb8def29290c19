package definitions

import (
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/spance/devicecheck/utils"
)

type ConnectionType string

const (
	USB    ConnectionType = "usb"
	WiFi   ConnectionType = "wifi"
	Remote ConnectionType = "remote"
	HTTP   ConnectionType = "http"
)

// DeviceInfo is one entry of the adb device list.
type DeviceInfo struct {
	DeviceID       string         `json:"device_id"`
	Status         string         `json:"status"`
	ConnectionType ConnectionType `json:"connection_type"`
	Model          string         `json:"model,omitempty"`
}

// Keys of the info mapping returned by a handle.
const (
	KeyDisplayWidth       = "displayWidth"
	KeyDisplayHeight      = "displayHeight"
	KeyDisplaySizeDpX     = "displaySizeDpX"
	KeyDisplaySizeDpY     = "displaySizeDpY"
	KeySDKInt             = "sdkInt"
	KeyScreenOn           = "screenOn"
	KeyNaturalOrientation = "naturalOrientation"
	KeyCurrentPackageName = "currentPackageName"
	KeyProductName        = "productName"
	KeyModel              = "model"
	KeyBrand              = "brand"
)

// Properties is the typed view of a handle's info mapping.
type Properties struct {
	ProductName        string `json:"product_name,omitempty"`
	Model              string `json:"model,omitempty"`
	Brand              string `json:"brand,omitempty"`
	SDKInt             int    `json:"sdk_int,omitempty"`
	DisplayWidth       int    `json:"display_width"`
	DisplayHeight      int    `json:"display_height"`
	DisplaySizeDpX     int    `json:"display_size_dp_x,omitempty"`
	DisplaySizeDpY     int    `json:"display_size_dp_y,omitempty"`
	ScreenOn           bool   `json:"screen_on"`
	NaturalOrientation bool   `json:"natural_orientation"`
	CurrentPackageName string `json:"current_package_name,omitempty"`
}

func ParseProperties(info map[string]any) Properties {
	p := Properties{
		ProductName:        utils.AnyToString(info[KeyProductName]),
		Model:              utils.AnyToString(info[KeyModel]),
		Brand:              utils.AnyToString(info[KeyBrand]),
		CurrentPackageName: utils.AnyToString(info[KeyCurrentPackageName]),
		NaturalOrientation: true,
	}
	p.SDKInt, _ = utils.AnyToInt(info[KeySDKInt])
	p.DisplayWidth, _ = utils.AnyToInt(info[KeyDisplayWidth])
	p.DisplayHeight, _ = utils.AnyToInt(info[KeyDisplayHeight])
	p.DisplaySizeDpX, _ = utils.AnyToInt(info[KeyDisplaySizeDpX])
	p.DisplaySizeDpY, _ = utils.AnyToInt(info[KeyDisplaySizeDpY])
	p.ScreenOn, _ = utils.AnyToBool(info[KeyScreenOn])
	if v, ok := utils.AnyToBool(info[KeyNaturalOrientation]); ok {
		p.NaturalOrientation = v
	}
	return p
}

// HasDisplaySize reports whether both display dimensions are known.
func (p Properties) HasDisplaySize() bool {
	return p.DisplayWidth > 0 && p.DisplayHeight > 0
}

// Screenshot represents a captured screenshot.
type Screenshot struct {
	Data   []byte `json:"-"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Address is a device endpoint as given by the operator.
type Address struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ParseAddress accepts "host:port" or a bare host, in which case defaultPort is used.
func ParseAddress(s string, defaultPort int) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, errors.New("device address is empty")
	}

	host, portStr := s, ""
	if strings.HasPrefix(s, "[") || strings.Count(s, ":") == 1 {
		h, p, err := net.SplitHostPort(s)
		if err != nil {
			return Address{}, errors.Wrapf(err, "invalid device address %q", s)
		}
		host, portStr = h, p
	}
	if host == "" {
		return Address{}, errors.Errorf("invalid device address %q: missing host", s)
	}

	port := defaultPort
	if portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return Address{}, errors.Errorf("invalid device port %q", portStr)
		}
		port = p
	}
	if port < 1 || port > 65535 {
		return Address{}, errors.Errorf("device port %d out of range", port)
	}
	return Address{Host: host, Port: port}, nil
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}
