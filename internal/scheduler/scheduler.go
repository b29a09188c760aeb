package scheduler

import (
	"context"
	"fmt"
	"time"

	"fablab-backend-go/internal/cache"
	"fablab-backend-go/internal/services"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Options struct {
	NotificationRetention time.Duration
	MetricsInterval       time.Duration
	DiskPath              string
	Cache                 cache.Cache
	Live                  *services.LiveHub
}

// Scheduler runs periodic housekeeping: notification purge, cache sweep
// and host metrics for the live feed.
type Scheduler struct {
	db   *sqlx.DB
	cron *cron.Cron
	log  *zerolog.Logger
	opts Options
}

func New(db *sqlx.DB, log *zerolog.Logger, opts Options) *Scheduler {
	return &Scheduler{
		db:   db,
		cron: cron.New(cron.WithLocation(time.UTC)),
		log:  log,
		opts: opts,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 3 * * *", s.purgeNotifications); err != nil {
		return fmt.Errorf("scheduling notification purge: %w", err)
	}
	if sweeper, ok := s.opts.Cache.(cache.Sweeper); ok {
		if _, err := s.cron.AddFunc("@every 10m", func() {
			if n := sweeper.RemoveExpired(); n > 0 {
				s.log.Debug().Int("removed", n).Msg("cache sweep")
			}
		}); err != nil {
			return fmt.Errorf("scheduling cache sweep: %w", err)
		}
	}
	if s.opts.Live != nil && s.opts.MetricsInterval > 0 {
		spec := fmt.Sprintf("@every %s", s.opts.MetricsInterval)
		if _, err := s.cron.AddFunc(spec, s.pushMetrics); err != nil {
			return fmt.Errorf("scheduling metrics: %w", err)
		}
	}
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) purgeNotifications() {
	if s.opts.NotificationRetention <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	cutoff := time.Now().UTC().Add(-s.opts.NotificationRetention)
	n, err := services.PurgeReadNotifications(ctx, s.db, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("purging notifications")
		return
	}
	s.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("purged read notifications")
}

func (s *Scheduler) pushMetrics() {
	if s.opts.Live.Count() == 0 {
		return
	}
	sample := services.CaptureMetrics(s.opts.DiskPath)
	s.opts.Live.Broadcast(services.LiveEvent{Type: "metrics", At: sample.CapturedAt, Metrics: &sample})
}
