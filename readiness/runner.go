package readiness

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/spance/devicecheck/readiness/definitions"
	"github.com/spance/devicecheck/utils"
)

const (
	DefaultStepTimeout   = 30 * time.Second
	DefaultSettle        = 2 * time.Second
	DefaultGestureSettle = 1500 * time.Millisecond
)

// Action performs one verification step and returns a short detail for the report.
type Action func(ctx context.Context, p *Probe) (string, error)

type Step struct {
	Name     string
	Severity definitions.Severity
	Action   Action
}

// Probe is the state shared by the steps of one run.
type Probe struct {
	Handle Handle
	// Properties is the latest info read, refreshed by the wake step.
	Properties definitions.Properties

	settle        time.Duration
	gestureSettle time.Duration
}

func (p *Probe) readProperties(ctx context.Context) (definitions.Properties, error) {
	info, err := p.Handle.Info(ctx)
	if err != nil {
		return definitions.Properties{}, err
	}
	p.Properties = definitions.ParseProperties(info)
	return p.Properties, nil
}

// displaySize prefers the size from the last info read and falls back to WindowSize.
func (p *Probe) displaySize(ctx context.Context) (int, int, error) {
	if p.Properties.HasDisplaySize() {
		return p.Properties.DisplayWidth, p.Properties.DisplayHeight, nil
	}
	w, h, err := p.Handle.WindowSize(ctx)
	if err != nil {
		return 0, 0, errors.Wrap(err, "display size unknown")
	}
	if w <= 0 || h <= 0 {
		return 0, 0, errors.Errorf("invalid display size %dx%d", w, h)
	}
	return w, h, nil
}

// Runner executes verification steps in order against one handle.
type Runner struct {
	StepTimeout   time.Duration
	Settle        time.Duration
	GestureSettle time.Duration
}

func NewRunner() *Runner {
	return &Runner{
		StepTimeout:   DefaultStepTimeout,
		Settle:        DefaultSettle,
		GestureSettle: DefaultGestureSettle,
	}
}

// Run executes steps in order. A failed blocking step marks every later step
// skipped without running it; failed advisory steps are only recorded.
func (r *Runner) Run(ctx context.Context, h Handle, steps []Step) definitions.VerificationReport {
	probe := &Probe{
		Handle:        h,
		settle:        r.Settle,
		gestureSettle: r.GestureSettle,
	}
	report := definitions.VerificationReport{
		Steps:          make([]definitions.StepResult, 0, len(steps)),
		OverallSuccess: true,
	}

	abortedBy := ""
	for i, step := range steps {
		if abortedBy != "" {
			report.Steps = append(report.Steps, definitions.StepResult{
				Name:     step.Name,
				Severity: step.Severity,
				Outcome:  definitions.OutcomeSkipped,
				Detail:   "not run, " + abortedBy + " failed",
			})
			continue
		}

		log.Info().Msgf("[step %d/%d] %s", i+1, len(steps), step.Name)
		result := r.runStep(ctx, probe, step)
		report.Steps = append(report.Steps, result)

		if result.Passed() {
			log.Info().Str("step", step.Name).Msgf("✅ %s", result.Detail)
			continue
		}
		log.Warn().Str("step", step.Name).Str("severity", string(step.Severity)).Msgf("❌ %s", result.Error)
		if step.Severity == definitions.SeverityBlocking {
			report.OverallSuccess = false
			abortedBy = step.Name
		}
	}
	return report
}

func (r *Runner) runStep(ctx context.Context, p *Probe, step Step) (result definitions.StepResult) {
	result = definitions.StepResult{Name: step.Name, Severity: step.Severity}

	stepTimeout := r.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		if rec := recover(); rec != nil {
			markFailed(&result, errors.Errorf("panic: %v", rec))
		}
	}()

	detail, err := step.Action(ctx, p)
	result.Detail = detail
	if err != nil {
		markFailed(&result, err)
		return result
	}
	result.Outcome = definitions.OutcomePassed
	return result
}

func markFailed(result *definitions.StepResult, err error) {
	kind := definitions.KindAdvisoryStepFailed
	if result.Severity == definitions.SeverityBlocking {
		kind = definitions.KindBlockingStepFailed
	}
	result.Outcome = definitions.OutcomeFailed
	result.ErrorKind = kind
	result.Error = utils.Truncate(err.Error(), ErrorSummaryLimit)
}
