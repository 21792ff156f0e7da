package chrono

import (
	"context"
	"time"
)

// API is the clock used by anything that waits or timestamps.
//
// note: fault injection point
type API interface {
	Now() time.Time
	// Sleep blocks for `d` or until ctx is done, whichever comes first.
	// It returns ctx.Err() when interrupted.
	Sleep(ctx context.Context, d time.Duration) error
}

type StandardImpl struct{}

func (StandardImpl) Now() time.Time {
	return time.Now()
}

func (StandardImpl) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jitter spreads `base` uniformly over [base*(1-fraction), base*(1+fraction)],
// `r` is a sample from [0, 1).
func Jitter(base time.Duration, fraction, r float64) time.Duration {
	if fraction <= 0 {
		return base
	}
	delta := float64(base) * fraction
	return base + time.Duration(delta*(2*r-1))
}
