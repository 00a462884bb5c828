package notify

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// ExpoJitter doubles Base per attempt, capped at Max, then scales by a
// random factor in [1-Jitter, 1+Jitter].
type ExpoJitter struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func (b ExpoJitter) Next(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(b.Base) * math.Pow(2, float64(attempt))
	if b.Max > 0 && time.Duration(d) > b.Max {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d *= 1 + (rand.Float64()*2-1)*b.Jitter
	}
	return time.Duration(d)
}

// Retry re-sends through Inner up to Attempts extra times.
type Retry struct {
	Inner    Notifier
	Attempts int
	Backoff  ExpoJitter
	Log      *zap.Logger
}

func NewRetry(inner Notifier, attempts int, base time.Duration, log *zap.Logger) *Retry {
	if attempts < 0 {
		attempts = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Retry{
		Inner:    inner,
		Attempts: attempts,
		Backoff:  ExpoJitter{Base: base, Max: 10 * base, Jitter: 0.2},
		Log:      log,
	}
}

func (r *Retry) Send(ctx context.Context, title, text string) error {
	err := r.Inner.Send(ctx, title, text)
	if err == nil || r.Attempts <= 0 {
		return err
	}
	for i := 0; i < r.Attempts; i++ {
		r.Log.Debug("notify_retry", zap.Int("attempt", i+1), zap.Error(err))
		t := time.NewTimer(r.Backoff.Next(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		if err = r.Inner.Send(ctx, title, text); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w (after retries)", err)
}
