package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"vivareal_scraper/config"
)

// Runner is the piece that extracts and persists one listing URL. The
// listing service implements it.
type Runner interface {
	ExtractAndStore(ctx context.Context, url string) error
}

// Triggerable allows workers to be kicked outside their own interval.
type Triggerable interface {
	Trigger()
}

// Scheduler re-extracts the watched listing URLs on a cron expression
// or a fixed interval.
type Scheduler struct {
	cfg    *config.Config
	runner Runner
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}

	healthcheckWorker Triggerable
}

func New(cfg *config.Config, runner Runner) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

// SetHealthcheck registers the healthcheck worker so each sweep also
// kicks a delisting pass.
func (s *Scheduler) SetHealthcheck(w Triggerable) {
	s.healthcheckWorker = w
}

func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.cfg.WatchURLs) == 0 {
		log.Println("No watch URLs configured, scheduler idle")
		return nil
	}

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.sweep(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
		return nil
	}

	if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.sweep(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
		return nil
	}

	log.Println("No schedule configured, daemon will only run workers")
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// TriggerNow runs a sweep outside the schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) {
	s.sweep(ctx)
}

// sweep re-extracts every watched URL in order. One failed URL does not
// stop the rest.
func (s *Scheduler) sweep(ctx context.Context) {
	log.Printf("Sweep: extracting %d watched URLs", len(s.cfg.WatchURLs))

	var failed int
	for _, url := range s.cfg.WatchURLs {
		if ctx.Err() != nil {
			return
		}
		if err := s.runner.ExtractAndStore(ctx, url); err != nil {
			log.Printf("Sweep: %s failed: %v", url, err)
			failed++
		}
	}

	log.Printf("Sweep: done, %d of %d failed", failed, len(s.cfg.WatchURLs))

	if s.healthcheckWorker != nil {
		s.healthcheckWorker.Trigger()
	}
}
