package readiness

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/spance/devicecheck/readiness/definitions"
	"github.com/spance/devicecheck/utils"
)

const (
	DefaultStrategyTimeout = 10 * time.Second
	// ErrorSummaryLimit caps error text kept in attempt and step records.
	ErrorSummaryLimit = 100
)

// Resolver finds the first strategy that yields a responsive handle.
type Resolver struct {
	// Timeout bounds connect plus the info probe of a single strategy.
	Timeout time.Duration
}

func NewResolver(timeout time.Duration) *Resolver {
	return &Resolver{Timeout: timeout}
}

func (r *Resolver) timeout() time.Duration {
	if r.Timeout <= 0 {
		return DefaultStrategyTimeout
	}
	return r.Timeout
}

// Resolve tries strategies in order and stops at the first one whose handle
// answers a non-empty info probe. Every attempt is recorded. When nothing
// works the handle is nil and the error wraps ErrAllStrategiesExhausted.
func (r *Resolver) Resolve(ctx context.Context, addr definitions.Address, strategies []Strategy) (Handle, []definitions.ConnectionAttempt, error) {
	attempts := make([]definitions.ConnectionAttempt, 0, len(strategies))

	for i, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, attempts, definitions.NewKindError(definitions.KindAllStrategiesExhausted,
				errors.Wrapf(err, "resolve %s aborted after %d of %d strategies", addr, i, len(strategies)))
		}

		target := s.Target(addr)
		log.Info().Msgf("[%d/%d] trying %s -> %s", i+1, len(strategies), s.Name, target)

		start := time.Now()
		h, err := r.attempt(ctx, s, target)
		attempt := definitions.ConnectionAttempt{
			Strategy:  s.Name,
			Transport: s.Kind,
			Target:    target,
			Succeeded: err == nil,
			Duration:  time.Since(start),
		}
		if err != nil {
			attempt.ErrorKind = definitions.KindOf(err)
			attempt.Error = utils.Truncate(err.Error(), ErrorSummaryLimit)
			attempts = append(attempts, attempt)
			log.Warn().Str("strategy", s.Name).Str("kind", string(attempt.ErrorKind)).Msg(attempt.Error)
			continue
		}

		attempts = append(attempts, attempt)
		log.Info().Str("strategy", s.Name).Dur("elapsed", attempt.Duration).Msg("connected")
		return h, attempts, nil
	}

	return nil, attempts, definitions.NewKindError(definitions.KindAllStrategiesExhausted,
		errors.Errorf("%d strategies failed for %s", len(strategies), addr))
}

type attemptResult struct {
	handle Handle
	err    error
}

// attempt runs connect and the info probe under the strategy timeout. A
// connector that ignores cancellation is abandoned once the timeout fires.
func (r *Resolver) attempt(ctx context.Context, s Strategy, target string) (Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	var connected atomic.Bool
	done := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- attemptResult{err: definitions.NewKindError(definitions.KindTransportUnavailable,
					errors.Errorf("panic in %s: %v", s.Name, p))}
			}
		}()

		h, err := s.Connect(ctx, target)
		if err != nil {
			done <- attemptResult{err: definitions.NewKindError(definitions.KindTransportUnavailable, err)}
			return
		}
		if h == nil {
			done <- attemptResult{err: definitions.NewKindError(definitions.KindTransportUnavailable,
				errors.New("connector returned no handle"))}
			return
		}
		connected.Store(true)

		info, err := h.Info(ctx)
		if err != nil {
			done <- attemptResult{err: definitions.NewKindError(definitions.KindHandleUnresponsive,
				errors.Wrap(err, "info probe"))}
			return
		}
		if len(info) == 0 {
			done <- attemptResult{err: definitions.NewKindError(definitions.KindHandleUnresponsive,
				errors.New("info probe returned no properties"))}
			return
		}
		done <- attemptResult{handle: h}
	}()

	select {
	case res := <-done:
		return res.handle, res.err
	case <-ctx.Done():
		kind := definitions.KindTransportUnavailable
		if connected.Load() {
			kind = definitions.KindHandleUnresponsive
		}
		return nil, definitions.NewKindError(kind, errors.Wrapf(ctx.Err(), "%s timed out after %s", s.Name, r.timeout()))
	}
}
