package stability

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// BackoffConfig configures the waits between attempts of
// FetchOrdersWithRetries.
//
// The wait before retry n (0 for the first retry) is:
//
//	min(InitialDelay * Factor^n, MaxDelay) + jitter(0, Jitter)
//
// Example delays with InitialDelay=100ms, Factor=2, MaxDelay=1s:
//   - retry 0: 100ms
//   - retry 1: 200ms
//   - retry 2: 400ms
//   - retry 3: 800ms
//   - retry 4: 1s (capped)
type BackoffConfig struct {
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// Factor multiplies the delay after every retry. Must be >= 1;
	// 1 gives a constant delay.
	Factor float64

	// MaxDelay caps the exponential component. Zero means no cap.
	MaxDelay time.Duration

	// Jitter is the upper bound of a uniform random wait added on top of the
	// capped delay so that many clients do not retry in lockstep.
	// Zero disables jitter.
	Jitter time.Duration
}

// DefaultBackoff doubles a 100ms delay up to 1s without jitter.
var DefaultBackoff = BackoffConfig{
	InitialDelay: 100 * time.Millisecond,
	Factor:       2,
	MaxDelay:     time.Second,
}

// Validate reports whether the configuration can be used. The returned error
// matches ErrInvalidBackoff.
func (b BackoffConfig) Validate() error {
	switch {
	case b.InitialDelay < 0:
		return fmt.Errorf("%w: initial delay %v is negative", ErrInvalidBackoff, b.InitialDelay)
	case math.IsNaN(b.Factor) || b.Factor < 1:
		return fmt.Errorf("%w: factor %v must be >= 1", ErrInvalidBackoff, b.Factor)
	case b.MaxDelay < 0:
		return fmt.Errorf("%w: max delay %v is negative", ErrInvalidBackoff, b.MaxDelay)
	case b.MaxDelay > 0 && b.MaxDelay < b.InitialDelay:
		return fmt.Errorf("%w: max delay %v is below initial delay %v", ErrInvalidBackoff, b.MaxDelay, b.InitialDelay)
	case b.Jitter < 0:
		return fmt.Errorf("%w: jitter %v is negative", ErrInvalidBackoff, b.Jitter)
	}
	return nil
}

// Delay returns the wait before retry n (0-based). rng supplies jitter; a nil
// rng uses the global source.
func (b BackoffConfig) Delay(retry int, rng *rand.Rand) time.Duration {
	if retry < 0 {
		retry = 0
	}

	var d time.Duration
	if b.InitialDelay > 0 {
		// Factor^n may overflow to +Inf; that still compares above any cap.
		delay := float64(b.InitialDelay) * math.Pow(b.Factor, float64(retry))
		switch {
		case b.MaxDelay > 0 && (math.IsNaN(delay) || delay > float64(b.MaxDelay)):
			d = b.MaxDelay
		case math.IsNaN(delay) || delay >= float64(math.MaxInt64):
			d = time.Duration(math.MaxInt64)
		default:
			d = time.Duration(delay)
		}
	}

	if b.Jitter > 0 {
		var j int64
		if rng != nil {
			j = rng.Int63n(int64(b.Jitter))
		} else {
			j = rand.Int63n(int64(b.Jitter)) // #nosec G404 -- jitter for retry timing, not security
		}
		if d > time.Duration(math.MaxInt64-j) {
			return time.Duration(math.MaxInt64)
		}
		d += time.Duration(j)
	}
	return d
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
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
