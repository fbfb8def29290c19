package readiness

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/spance/devicecheck/readiness/definitions"
	"github.com/spance/devicecheck/utils"
)

// Checker resolves a device, verifies it and checks the target package.
type Checker struct {
	Resolver   *Resolver
	Runner     *Runner
	Strategies []Strategy
	Steps      []Step
	Packages   PackageQuerier
	// Package is the application that must be installed, e.g. com.instagram.android.
	Package string
}

// Run performs one readiness check. The returned report is never nil.
func (c *Checker) Run(ctx context.Context, addr definitions.Address) *definitions.Report {
	start := time.Now()
	report := &definitions.Report{
		ID:        uuid.New().String(),
		Address:   addr,
		StartedAt: start,
	}
	defer func() {
		report.Duration = time.Since(start)
	}()

	log.Info().Str("run", report.ID).Msgf("checking device %s", addr)
	h, attempts, err := c.Resolver.Resolve(ctx, addr, c.Strategies)
	report.Attempts = attempts
	if err != nil {
		report.ErrorKind = definitions.KindOf(err)
		log.Error().Err(err).Msg("no connection method worked")
		return report
	}
	if closer, ok := h.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Debug().Err(err).Msg("close handle")
			}
		}()
	}
	if n := len(attempts); n > 0 {
		report.ConnectedVia = attempts[n-1].Strategy
	}

	if info, err := h.Info(ctx); err == nil {
		props := definitions.ParseProperties(info)
		report.Properties = &props
	} else {
		log.Warn().Err(err).Msg("read device info")
	}

	verification := c.Runner.Run(ctx, h, c.Steps)
	report.Verification = &verification
	report.OverallSuccess = verification.OverallSuccess
	if !verification.OverallSuccess {
		report.ErrorKind = definitions.KindBlockingStepFailed
	}

	if c.Package != "" && c.Packages != nil {
		report.PackageCheck = c.checkPackage(ctx, h)
	}
	return report
}

func (c *Checker) checkPackage(ctx context.Context, h Handle) *definitions.PackageCheck {
	check := &definitions.PackageCheck{Package: c.Package}
	installed, err := c.Packages.HasPackage(ctx, h, c.Package)
	if err != nil {
		check.Error = utils.Truncate(err.Error(), ErrorSummaryLimit)
		log.Warn().Err(err).Str("package", c.Package).Msg("package check failed")
		return check
	}
	check.Installed = installed
	if installed {
		log.Info().Str("package", c.Package).Msg("✅ target app installed")
	} else {
		log.Warn().Str("package", c.Package).Msg("❌ target app not installed")
	}
	return check
}
