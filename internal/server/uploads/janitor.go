package uploads

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var uploadsPurged = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chunkmail_uploads_purged_total",
	Help: "Unfinished uploads dropped after sitting idle.",
})

// PurgeStale drops unfinished uploads idle for longer than maxAge and
// returns how many went.
func (s *Service) PurgeStale(ctx context.Context, maxAge time.Duration) int {
	ids, err := s.chunks.PurgeStale(maxAge)
	if err != nil {
		s.log.Warn(ctx, "purge stale uploads", "error", err)
	}
	for _, id := range ids {
		s.log.Info(ctx, "stale upload purged", "upload_id", id)
	}
	uploadsPurged.Add(float64(len(ids)))
	return len(ids)
}

// RunJanitor calls PurgeStale every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info(ctx, "upload janitor started", "interval", interval.String(), "max_age", maxAge.String())
	for {
		select {
		case <-ticker.C:
			s.PurgeStale(ctx, maxAge)
		case <-ctx.Done():
			return
		}
	}
}
