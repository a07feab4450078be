package linkwatch

import (
	"context"
	"time"
)

// pollSource re-evaluates on a fixed interval on platforms without change
// notifications, or when polling is requested explicitly.
type pollSource struct {
	interval time.Duration
}

func (pollSource) name() string { return "poll" }

func (p pollSource) stream(ctx context.Context) (<-chan osEvent, <-chan error) {
	out := make(chan osEvent, 1)
	interval := p.interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	go func() {
		defer close(out)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				select {
				case out <- osEvent{reason: "poll"}:
				default:
				}
			}
		}
	}()
	return out, nil
}
