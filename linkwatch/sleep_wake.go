package linkwatch

import (
	"context"
	"time"
)

// WakeSignals fires after a resume from sleep or hibernation, detected as a
// jump in the monotonic clock between two ticks.
func WakeSignals(ctx context.Context, sample, gap time.Duration) <-chan struct{} {
	if sample <= 0 {
		sample = DefaultWakeSample
	}
	if gap <= 0 {
		gap = DefaultWakeGap
	}
	out := make(chan struct{}, 1)
	t := time.NewTicker(sample)
	last := time.Now()
	go func() {
		defer close(out)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				woke := isWake(last, now, sample, gap)
				last = now
				if woke {
					select {
					case out <- struct{}{}:
					default:
					}
				}
			}
		}
	}()
	return out
}

func isWake(prev, now time.Time, sample, gap time.Duration) bool {
	return now.Sub(prev) >= sample+gap
}
