package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasttemplate"

	"github.com/spance/devicecheck/readiness/definitions"
)

const (
	startTag = "{{ "
	endTag   = " }}"
)

var ruler = strings.Repeat("=", 70)

var (
	headerTpl = fasttemplate.New(`{{ ruler }}
DEVICE READINESS CHECK {{ address }}
{{ ruler }}
`, startTag, endTag)

	deviceTpl = fasttemplate.New(`
{{ ruler }}
DEVICE INFORMATION
{{ ruler }}
Product Name: {{ product }}
Model: {{ model }}
Brand: {{ brand }}
SDK Version (Android): {{ sdk }}
Display Size: {{ width }}x{{ height }}
Display DPI: {{ dpx }}x{{ dpy }}
Screen On: {{ screen_on }}
Natural Orientation: {{ orientation }}
Current Package: {{ package }}
`, startTag, endTag)

	readyTpl = fasttemplate.New(`
{{ ruler }}
DEVICE IS READY
{{ ruler }}
Connection Method Used: {{ method }}
Device: {{ device }}
Android Version (SDK): {{ sdk }}
Checked in {{ duration }}

You can now run the automation against {{ package }}.
`, startTag, endTag)

	unreachableTpl = fasttemplate.New(`
{{ ruler }}
UNABLE TO CONNECT TO DEVICE
{{ ruler }}
All connection methods failed:
{{ methods }}
Possible solutions:
1. Authenticate with your cloud device provider (e.g. 'glogin' for GeeLark)
2. Check if device is still online
3. Verify firewall rules allow connection to {{ address }}
4. Contact your cloud device provider
`, startTag, endTag)

	notReadyTpl = fasttemplate.New(`
{{ ruler }}
DEVICE IS NOT READY
{{ ruler }}
Connected via {{ method }}, but {{ step }} failed: {{ error }}
Make sure the screen can be woken and is not behind a PIN or pattern lock.
`, startTag, endTag)
)

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func icon(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

func round(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

// RenderText writes the human readable report.
func RenderText(w io.Writer, r *definitions.Report) error {
	var b strings.Builder
	b.WriteString(headerTpl.ExecuteString(map[string]any{
		"ruler":   ruler,
		"address": r.Address.String(),
	}))

	b.WriteString("\nConnection attempts:\n")
	for i, a := range r.Attempts {
		fmt.Fprintf(&b, "  %d. %s %s -> %s (%s)", i+1, icon(a.Succeeded), a.Strategy, a.Target, round(a.Duration))
		if a.Error != "" {
			fmt.Fprintf(&b, ": %s", a.Error)
		}
		b.WriteString("\n")
	}

	if p := r.Properties; p != nil {
		sdk := "Unknown"
		if p.SDKInt > 0 {
			sdk = strconv.Itoa(p.SDKInt)
		}
		b.WriteString(deviceTpl.ExecuteString(map[string]any{
			"ruler":       ruler,
			"product":     orUnknown(p.ProductName),
			"model":       orUnknown(p.Model),
			"brand":       orUnknown(p.Brand),
			"sdk":         sdk,
			"width":       strconv.Itoa(p.DisplayWidth),
			"height":      strconv.Itoa(p.DisplayHeight),
			"dpx":         strconv.Itoa(p.DisplaySizeDpX),
			"dpy":         strconv.Itoa(p.DisplaySizeDpY),
			"screen_on":   strconv.FormatBool(p.ScreenOn),
			"orientation": strconv.FormatBool(p.NaturalOrientation),
			"package":     orUnknown(p.CurrentPackageName),
		}))
	}

	if v := r.Verification; v != nil {
		b.WriteString("\nVerification:\n")
		for _, s := range v.Steps {
			mark := icon(s.Passed())
			if s.Outcome == definitions.OutcomeSkipped {
				mark = "⏭️"
			}
			fmt.Fprintf(&b, "  %s [%s] %s", mark, s.Severity, s.Name)
			if s.Detail != "" {
				fmt.Fprintf(&b, ": %s", s.Detail)
			}
			if s.Error != "" {
				fmt.Fprintf(&b, " (%s)", s.Error)
			}
			b.WriteString("\n")
		}
	}

	if c := r.PackageCheck; c != nil {
		switch {
		case c.Error != "":
			fmt.Fprintf(&b, "\nTarget app: ⚠️  could not check %s: %s\n", c.Package, c.Error)
		case c.Installed:
			fmt.Fprintf(&b, "\nTarget app: ✅ %s is installed\n", c.Package)
		default:
			fmt.Fprintf(&b, "\nTarget app: ❌ %s is not installed, install it before running the bot\n", c.Package)
		}
	}

	b.WriteString(verdict(r))
	_, err := io.WriteString(w, b.String())
	return err
}

func verdict(r *definitions.Report) string {
	switch {
	case r.OverallSuccess:
		device, sdk, pkg := "Unknown", "Unknown", "the target app"
		if p := r.Properties; p != nil {
			if name := strings.TrimSpace(p.Brand + " " + p.ProductName); name != "" {
				device = name
			}
			if p.SDKInt > 0 {
				sdk = strconv.Itoa(p.SDKInt)
			}
		}
		if r.PackageCheck != nil {
			pkg = r.PackageCheck.Package
		}
		return readyTpl.ExecuteString(map[string]any{
			"ruler":    ruler,
			"method":   r.ConnectedVia,
			"device":   device,
			"sdk":      sdk,
			"duration": round(r.Duration),
			"package":  pkg,
		})

	case r.ErrorKind == definitions.KindAllStrategiesExhausted:
		var methods strings.Builder
		for _, a := range r.Attempts {
			fmt.Fprintf(&methods, "  ❌ %s\n", a.Strategy)
		}
		return unreachableTpl.ExecuteString(map[string]any{
			"ruler":   ruler,
			"methods": methods.String(),
			"address": r.Address.String(),
		})

	default:
		step, errText := "verification", "unknown error"
		if r.Verification != nil {
			for _, s := range r.Verification.Failed() {
				if s.Severity == definitions.SeverityBlocking {
					step, errText = s.Name, s.Error
					break
				}
			}
		}
		return notReadyTpl.ExecuteString(map[string]any{
			"ruler":  ruler,
			"method": r.ConnectedVia,
			"step":   step,
			"error":  errText,
		})
	}
}

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, r *definitions.Report) error {
	data, err := sonic.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
