package listener

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"autoquote/internal/connectors/maildir"
)

// Run sweeps on the configured cron schedule until ctx is cancelled. A tick
// that fires while the previous sweep is still running is skipped.
func (s *Service) Run(ctx context.Context) error {
	cronLog := log.With().Str("component", "cron").Logger()
	c := cron.New(cron.WithLogger(cron.PrintfLogger(&cronLog)))

	if _, err := c.AddFunc(s.schedule, func() { s.runTriggered(ctx, "cron") }); err != nil {
		return fmt.Errorf("invalid SWEEP_SCHEDULE %q: %w", s.schedule, err)
	}
	c.Start()
	log.Info().Str("schedule", s.schedule).Msg("sweep scheduler started")

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	log.Info().Msg("sweep scheduler stopped")
	return nil
}

func (s *Service) runTriggered(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.TriggerSweep(ctx, trigger); err != nil {
		if errors.Is(err, ErrSweepRunning) {
			log.Info().Str("trigger", trigger).Msg("previous sweep still running, skipping")
			return
		}
		log.Error().Err(err).Str("trigger", trigger).Msg("sweep failed")
	}
}

const watchDebounce = 500 * time.Millisecond

// Watch sweeps whenever a message file lands in the maildrop directory.
// Bursts of events are coalesced into one sweep.
func (s *Service) Watch(ctx context.Context) error {
	if s.dropDir == "" {
		return errors.New("MAILDROP_DIR is not set")
	}
	if err := os.MkdirAll(s.dropDir, 0o755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(s.dropDir); err != nil {
		return err
	}
	log.Info().Str("dir", s.dropDir).Msg("watching maildrop")

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !maildir.IsMessageFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(watchDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("maildrop watcher error")
		case <-timer.C:
			s.runTriggered(ctx, "maildrop")
		}
	}
}
