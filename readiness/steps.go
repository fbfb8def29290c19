package readiness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/spance/devicecheck/readiness/definitions"
	"github.com/spance/devicecheck/utils"
)

const (
	StepScreenWake    = "Screen wake"
	StepGestures      = "Gesture probe"
	StepTap           = "Tap probe"
	StepIntrospection = "Window/app introspection"
	StepHierarchy     = "UI hierarchy probe"
	StepBack          = "Back press"
	StepHome          = "Home press"
	StepScreenshot    = "Screenshot probe"
)

const gestureDuration = 100 * time.Millisecond

// DefaultSteps returns the verification sequence: a blocking screen wake
// followed by advisory probes.
func DefaultSteps() []Step {
	return []Step{
		{Name: StepScreenWake, Severity: definitions.SeverityBlocking, Action: wakeScreen},
		{Name: StepGestures, Severity: definitions.SeverityAdvisory, Action: probeGestures},
		{Name: StepTap, Severity: definitions.SeverityAdvisory, Action: probeTap},
		{Name: StepIntrospection, Severity: definitions.SeverityAdvisory, Action: probeIntrospection},
		{Name: StepHierarchy, Severity: definitions.SeverityAdvisory, Action: probeHierarchy},
		{Name: StepBack, Severity: definitions.SeverityAdvisory, Action: pressKey("back")},
		{Name: StepHome, Severity: definitions.SeverityAdvisory, Action: pressKey("home")},
	}
}

func ScreenshotStep() Step {
	return Step{Name: StepScreenshot, Severity: definitions.SeverityAdvisory, Action: probeScreenshot}
}

func wakeScreen(ctx context.Context, p *Probe) (string, error) {
	props, err := p.readProperties(ctx)
	if err != nil {
		return "", errors.Wrap(err, "read device info")
	}
	if props.ScreenOn {
		return "already on", nil
	}

	log.Info().Msg("screen is off, waking up")
	if err := p.Handle.ScreenOn(ctx); err != nil {
		return "", errors.Wrap(err, "screen on")
	}
	if err := utils.Sleep(ctx, p.settle); err != nil {
		return "", err
	}
	// 解锁失败时以复查结果为准
	if err := p.Handle.Unlock(ctx); err != nil {
		log.Warn().Err(err).Msg("unlock failed")
	}
	if err := utils.Sleep(ctx, p.settle); err != nil {
		return "", err
	}

	props, err = p.readProperties(ctx)
	if err != nil {
		return "", errors.Wrap(err, "re-read device info")
	}
	if !props.ScreenOn {
		return "", errors.New("screen still off after wake and unlock")
	}
	return "woken up", nil
}

// Gesture is a straight swipe between two points.
type Gesture struct {
	Name   string
	X1, Y1 int
	X2, Y2 int
}

// SwipePlan returns swipes up, down, left and right for a w x h display.
// Vertical swipes run between 80% and 20% of the height on the center line,
// horizontal ones mirror that across the width.
func SwipePlan(w, h int) []Gesture {
	cx, cy := w/2, h/2
	top, bottom := h*2/10, h*8/10
	left, right := w*2/10, w*8/10
	return []Gesture{
		{Name: "up", X1: cx, Y1: bottom, X2: cx, Y2: top},
		{Name: "down", X1: cx, Y1: top, X2: cx, Y2: bottom},
		{Name: "left", X1: right, Y1: cy, X2: left, Y2: cy},
		{Name: "right", X1: left, Y1: cy, X2: right, Y2: cy},
	}
}

func probeGestures(ctx context.Context, p *Probe) (string, error) {
	w, h, err := p.displaySize(ctx)
	if err != nil {
		return "", err
	}

	plan := SwipePlan(w, h)
	var failed []string
	for i, g := range plan {
		if err := p.Handle.Swipe(ctx, g.X1, g.Y1, g.X2, g.Y2, gestureDuration); err != nil {
			log.Warn().Err(err).Str("gesture", g.Name).Msg("swipe failed")
			failed = append(failed, g.Name)
		}
		if i < len(plan)-1 {
			if err := utils.Sleep(ctx, p.gestureSettle); err != nil {
				return "", err
			}
		}
	}

	detail := fmt.Sprintf("%d/%d gestures ok", len(plan)-len(failed), len(plan))
	if len(failed) > 0 {
		return detail, errors.Errorf("swipe %s failed", strings.Join(failed, ", "))
	}
	return detail, nil
}

func probeTap(ctx context.Context, p *Probe) (string, error) {
	w, h, err := p.displaySize(ctx)
	if err != nil {
		return "", err
	}
	x, y := w/2, h/2
	if err := p.Handle.Tap(ctx, x, y); err != nil {
		return "", err
	}
	return fmt.Sprintf("tapped (%d, %d)", x, y), nil
}

func probeIntrospection(ctx context.Context, p *Probe) (string, error) {
	var parts []string
	var errs []string

	if w, h, err := p.Handle.WindowSize(ctx); err != nil {
		errs = append(errs, "window size: "+err.Error())
	} else {
		parts = append(parts, fmt.Sprintf("window %dx%d", w, h))
	}
	if app, err := p.Handle.CurrentApp(ctx); err != nil {
		errs = append(errs, "current app: "+err.Error())
	} else {
		parts = append(parts, "foreground "+app)
	}

	detail := strings.Join(parts, ", ")
	if len(errs) > 0 {
		return detail, errors.New(strings.Join(errs, "; "))
	}
	return detail, nil
}

// CountNodes counts the <node elements of a hierarchy dump.
func CountNodes(dump string) int {
	return strings.Count(dump, "<node")
}

func probeHierarchy(ctx context.Context, p *Probe) (string, error) {
	dump, err := p.Handle.DumpHierarchy(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d nodes", CountNodes(dump)), nil
}

func pressKey(name string) Action {
	return func(ctx context.Context, p *Probe) (string, error) {
		if err := p.Handle.PressKey(ctx, name); err != nil {
			return "", err
		}
		return name + " pressed", nil
	}
}

func probeScreenshot(ctx context.Context, p *Probe) (string, error) {
	s, ok := p.Handle.(Screenshotter)
	if !ok {
		return "", errors.New("handle cannot take screenshots")
	}
	shot, err := s.Screenshot(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %dx%d, %s", shot.Format, shot.Width, shot.Height, humanBytes(len(shot.Data))), nil
}

func humanBytes(n int) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
