package progress

import (
	"context"
	"time"
)

const DefaultPollInterval = 2 * time.Second

// Poll calls fetch every interval until the snapshot is terminal or ctx ends.
// A nil snapshot means the run is not visible yet.
func Poll(ctx context.Context, fetch func(ctx context.Context) (*Snapshot, error), interval time.Duration, onSnapshot func(Snapshot)) (Snapshot, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		snap, err := fetch(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		if snap != nil {
			if onSnapshot != nil {
				onSnapshot(*snap)
			}
			if snap.Terminal() {
				return *snap, nil
			}
		}
		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
