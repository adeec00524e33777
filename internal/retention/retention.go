// Package retention periodically purges old sensor records.
package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"bioreactor-monitor/config"
	"bioreactor-monitor/internal/metrics"
	"bioreactor-monitor/internal/model"
)

// Store is the subset of the persistence accessor retention needs.
type Store interface {
	ReactorIDs(ctx context.Context, dt model.DataType) ([]int64, error)
	DeleteBefore(ctx context.Context, dt model.DataType, reactorID int64, cutoff time.Time) (int64, error)
}

// Service runs the purge loop.
type Service struct {
	cfg   config.RetentionConfig
	store Store
	now   func() time.Time
	log   zerolog.Logger
}

func NewService(cfg config.RetentionConfig, st Store, log zerolog.Logger) *Service {
	return &Service{cfg: cfg, store: st, now: time.Now, log: log}
}

// Run purges once, then again every interval, until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info().Msg("retention is disabled, not starting")
		return
	}
	s.log.Info().Int("max_age_days", s.cfg.MaxAgeDays).Dur("interval", s.cfg.Interval).Msg("starting retention service")

	s.PurgeOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("retention service shutting down")
			return
		case <-timer.C:
			s.PurgeOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// PurgeOnce deletes records older than the configured age for every reactor and data
// type. It returns the number of rows removed. A failure for one reactor does not stop
// the others.
func (s *Service) PurgeOnce(ctx context.Context) int64 {
	cutoff := s.now().UTC().AddDate(0, 0, -s.cfg.MaxAgeDays)
	var total int64
	for _, dt := range model.AllDataTypes() {
		ids, err := s.store.ReactorIDs(ctx, dt)
		if err != nil {
			s.log.Error().Err(err).Str("data_type", string(dt)).Msg("failed to list reactors")
			continue
		}
		for _, id := range ids {
			n, err := s.store.DeleteBefore(ctx, dt, id, cutoff)
			if err != nil {
				s.log.Error().Err(err).Str("data_type", string(dt)).Int64("reactor_id", id).Msg("purge failed")
				continue
			}
			if n > 0 {
				metrics.RecordsPurged.WithLabelValues(string(dt)).Add(float64(n))
				s.log.Info().Str("data_type", string(dt)).Int64("reactor_id", id).Int64("deleted", n).Msg("purged old records")
			}
			total += n
		}
	}
	return total
}
