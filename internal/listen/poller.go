package listen

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultPollInterval is the interval used when none is configured.
const DefaultPollInterval = 3 * time.Second

// Poller watches a stored session until enrichment completes. Polling only
// reads and has no effect on the enrichment itself.
type Poller struct {
	store    Store
	interval atomic.Int64
}

// NewPoller returns a Poller that reads store every interval.
func NewPoller(store Store, interval time.Duration) *Poller {
	p := &Poller{store: store}
	p.SetInterval(interval)
	return p
}

// Interval returns the current poll interval.
func (p *Poller) Interval() time.Duration {
	return time.Duration(p.interval.Load())
}

// SetInterval changes the poll interval of later waits. A non-positive
// interval selects [DefaultPollInterval].
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultPollInterval
	}
	p.interval.Store(int64(d))
}

// WaitEnriched returns the session once every entry is enriched. It returns
// the last read and ctx's error if ctx ends first.
func (p *Poller) WaitEnriched(ctx context.Context, sessionID string) (*Session, error) {
	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()
	for {
		s, err := p.store.GetListenSession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("listen: poll %s: %w", sessionID, err)
		}
		if s.IsEnriched() {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-ticker.C:
		}
	}
}
