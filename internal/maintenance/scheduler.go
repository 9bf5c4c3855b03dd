package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/blog-admin/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// purgeTimeout bounds a single purge run.
const purgeTimeout = time.Minute

// Scheduler periodically deletes contact messages older than the
// configured retention window.
type Scheduler struct {
	messageSvc services.MessageServiceProvider
	retention  time.Duration
	cron       *cron.Cron
	now        func() time.Time
}

// NewScheduler validates the cron schedule and prepares a purge job. Call Start to run it.
func NewScheduler(messageSvc services.MessageServiceProvider, retention time.Duration, schedule string) (*Scheduler, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", retention)
	}
	s := &Scheduler{
		messageSvc: messageSvc,
		retention:  retention,
		cron:       cron.New(),
		now:        time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, s.runPurge); err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	log.Info().Dur("retention", s.retention).Msg("Starting message purge scheduler")
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running purge to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopped message purge scheduler")
}

func (s *Scheduler) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()
	if _, err := s.Purge(ctx); err != nil {
		log.Error().Err(err).Msg("Message purge failed")
	}
}

// Purge deletes every message created before now minus the retention window.
func (s *Scheduler) Purge(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.messageSvc.DeleteMessagesBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting messages before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Purged old contact messages")
	return n, nil
}
