package readiness

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spance/devicecheck/readiness/definitions"
)

func testChecker(strategies []Strategy) *Checker {
	return &Checker{
		Resolver:   NewResolver(time.Second),
		Runner:     testRunner(),
		Strategies: strategies,
		Steps:      DefaultSteps(),
		Packages:   ShellPackages{},
		Package:    "com.instagram.android",
	}
}

func TestCheckSecondStrategy(t *testing.T) {
	h := shellHandle{newFakeHandle(1080, 1920, true)}
	h.shell = map[string]string{
		"pm list packages com.instagram.android": "package:com.instagram.android\n",
	}
	invoked := &invocations{}
	strategies := []Strategy{
		staticStrategy("ADB WiFi", invoked, failing(errors.New("failed to connect"))),
		staticStrategy("HTTP Direct (7912)", invoked, succeeding(h)),
		staticStrategy("Simple IP", invoked, succeeding(h)),
	}

	report := testChecker(strategies).Run(context.Background(), testAddr)

	if !report.OverallSuccess || report.ErrorKind != "" {
		t.Fatalf("expected success, got %+v", report)
	}
	if report.ID == "" || report.StartedAt.IsZero() {
		t.Error("report should carry an id and start time")
	}
	if report.ConnectedVia != "HTTP Direct (7912)" {
		t.Errorf("unexpected connection method %q", report.ConnectedVia)
	}
	if len(report.Attempts) != 2 || report.Attempts[0].Succeeded || !report.Attempts[1].Succeeded {
		t.Errorf("unexpected attempts %+v", report.Attempts)
	}
	if report.Properties == nil || report.Properties.DisplayWidth != 1080 || report.Properties.DisplayHeight != 1920 {
		t.Errorf("unexpected properties %+v", report.Properties)
	}
	if !report.Properties.ScreenOn {
		t.Error("expected screen on")
	}
	if wake, _ := report.Verification.Step(StepScreenWake); wake.Detail != "already on" {
		t.Errorf("unexpected wake detail %q", wake.Detail)
	}
	if report.PackageCheck == nil || !report.PackageCheck.Installed {
		t.Errorf("unexpected package check %+v", report.PackageCheck)
	}
	if !h.closed {
		t.Error("handle should be closed after the run")
	}
	if names := invoked.list(); strings.Join(names, ",") != "ADB WiFi,HTTP Direct (7912)" {
		t.Errorf("unexpected invocations %v", names)
	}
}

func TestCheckExhausted(t *testing.T) {
	invoked := &invocations{}
	strategies := []Strategy{
		staticStrategy("a", invoked, failing(errors.New("refused"))),
		staticStrategy("b", invoked, failing(errors.New("refused"))),
	}
	report := testChecker(strategies).Run(context.Background(), testAddr)

	if report.OverallSuccess {
		t.Fatal("expected failure")
	}
	if report.ErrorKind != definitions.KindAllStrategiesExhausted {
		t.Errorf("unexpected kind %s", report.ErrorKind)
	}
	if len(report.Attempts) != 2 {
		t.Errorf("all attempts should be reported, got %d", len(report.Attempts))
	}
	if report.Verification != nil || report.PackageCheck != nil {
		t.Error("nothing should run without a handle")
	}
}

func TestCheckMissingPackageIsAdvisory(t *testing.T) {
	h := shellHandle{newFakeHandle(1080, 1920, true)}
	h.shell = map[string]string{"pm list packages com.instagram.android": ""}
	invoked := &invocations{}
	report := testChecker([]Strategy{staticStrategy("only", invoked, succeeding(h))}).Run(context.Background(), testAddr)

	if !report.OverallSuccess {
		t.Fatal("a missing package must not fail the check")
	}
	if report.PackageCheck.Installed || report.PackageCheck.Error != "" {
		t.Errorf("unexpected package check %+v", report.PackageCheck)
	}
}

func TestCheckBlockingFailure(t *testing.T) {
	h := newFakeHandle(1080, 1920, false)
	invoked := &invocations{}
	report := testChecker([]Strategy{staticStrategy("only", invoked, succeeding(h))}).Run(context.Background(), testAddr)

	if report.OverallSuccess || report.ErrorKind != definitions.KindBlockingStepFailed {
		t.Errorf("unexpected verdict %v, %s", report.OverallSuccess, report.ErrorKind)
	}
}

func TestShellPackagesFallback(t *testing.T) {
	fallback := shellHandle{newFakeHandle(1, 1, true)}
	fallback.shell = map[string]string{"pm list packages com.whatsapp": "package:com.whatsapp\n"}

	ok, err := ShellPackages{Fallback: fallback}.HasPackage(context.Background(), newFakeHandle(1, 1, true), "com.whatsapp")
	if err != nil || !ok {
		t.Errorf("got %v, %v", ok, err)
	}

	if _, err := (ShellPackages{}).HasPackage(context.Background(), newFakeHandle(1, 1, true), "com.whatsapp"); err == nil {
		t.Error("expected error without any shell")
	}
}

func TestListsPackage(t *testing.T) {
	out := "package:com.instagram.android\npackage:com.instagram.barcelona\n"
	if !ListsPackage(out, "com.instagram.android") {
		t.Error("expected package present")
	}
	if ListsPackage(out, "com.instagram") {
		t.Error("prefix must not match")
	}
	if ListsPackage("", "com.instagram.android") {
		t.Error("empty output must not match")
	}
}
