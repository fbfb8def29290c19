package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/spance/devicecheck/readiness/definitions"
)

func readyReport() *definitions.Report {
	return &definitions.Report{
		ID:      "run-1",
		Address: definitions.Address{Host: "128.14.109.187", Port: 20624},
		Attempts: []definitions.ConnectionAttempt{
			{Strategy: "ADB WiFi", Target: "128.14.109.187:20624", ErrorKind: definitions.KindTransportUnavailable, Error: "connection refused", Duration: time.Second},
			{Strategy: "HTTP Direct (7912)", Target: "http://128.14.109.187:7912", Succeeded: true, Duration: 300 * time.Millisecond},
		},
		ConnectedVia: "HTTP Direct (7912)",
		Properties: &definitions.Properties{
			ProductName:        "redfin",
			Brand:              "google",
			SDKInt:             30,
			DisplayWidth:       1080,
			DisplayHeight:      1920,
			ScreenOn:           true,
			NaturalOrientation: true,
		},
		Verification: &definitions.VerificationReport{
			Steps: []definitions.StepResult{
				{Name: "Screen wake", Severity: definitions.SeverityBlocking, Outcome: definitions.OutcomePassed, Detail: "already on"},
				{Name: "UI hierarchy probe", Severity: definitions.SeverityAdvisory, Outcome: definitions.OutcomeFailed, Error: "dump timed out"},
			},
			OverallSuccess: true,
		},
		PackageCheck:   &definitions.PackageCheck{Package: "com.instagram.android", Installed: true},
		OverallSuccess: true,
		Duration:       4 * time.Second,
	}
}

func TestRenderTextReady(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderText(&buf, readyReport()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"DEVICE READINESS CHECK 128.14.109.187:20624",
		"❌ ADB WiFi -> 128.14.109.187:20624 (1s): connection refused",
		"✅ HTTP Direct (7912)",
		"Display Size: 1080x1920",
		"Model: Unknown",
		"✅ [blocking] Screen wake: already on",
		"❌ [advisory] UI hierarchy probe (dump timed out)",
		"com.instagram.android is installed",
		"DEVICE IS READY",
		"Connection Method Used: HTTP Direct (7912)",
		"Device: google redfin",
		"Android Version (SDK): 30",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTextUnreachable(t *testing.T) {
	r := &definitions.Report{
		Address: definitions.Address{Host: "1.2.3.4", Port: 9999},
		Attempts: []definitions.ConnectionAttempt{
			{Strategy: "ADB WiFi", Error: "timed out"},
			{Strategy: "HTTP Direct (7912)", Error: "timed out"},
			{Strategy: "Simple IP", Error: "timed out"},
		},
		ErrorKind: definitions.KindAllStrategiesExhausted,
	}
	var buf bytes.Buffer
	if err := RenderText(&buf, r); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "UNABLE TO CONNECT TO DEVICE") {
		t.Errorf("missing failure banner:\n%s", out)
	}
	for _, name := range []string{"ADB WiFi", "HTTP Direct (7912)", "Simple IP"} {
		if !strings.Contains(out, "  ❌ "+name+"\n") {
			t.Errorf("missing method %s in hints", name)
		}
	}
	if strings.Contains(out, "DEVICE INFORMATION") {
		t.Error("no device information without a connection")
	}
}

func TestRenderTextNotReady(t *testing.T) {
	r := readyReport()
	r.OverallSuccess = false
	r.ErrorKind = definitions.KindBlockingStepFailed
	r.Verification.OverallSuccess = false
	r.Verification.Steps[0] = definitions.StepResult{
		Name: "Screen wake", Severity: definitions.SeverityBlocking, Outcome: definitions.OutcomeFailed,
		Error: "screen still off after wake and unlock",
	}
	r.Verification.Steps[1].Outcome = definitions.OutcomeSkipped

	var buf bytes.Buffer
	if err := RenderText(&buf, r); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "DEVICE IS NOT READY") || !strings.Contains(out, "Screen wake failed: screen still off") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "⏭️ [advisory] UI hierarchy probe") {
		t.Errorf("skipped step not rendered:\n%s", out)
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderJSON(&buf, readyReport()); err != nil {
		t.Fatal(err)
	}
	var decoded definitions.Report
	if err := sonic.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !decoded.OverallSuccess || decoded.ConnectedVia != "HTTP Direct (7912)" {
		t.Errorf("unexpected decoded report %+v", decoded)
	}
	if len(decoded.Verification.Steps) != 2 {
		t.Errorf("expected 2 steps, got %d", len(decoded.Verification.Steps))
	}
	if !strings.Contains(buf.String(), `"overall_success": true`) {
		t.Errorf("expected snake_case keys:\n%s", buf.String())
	}
}
