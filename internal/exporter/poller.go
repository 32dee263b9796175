package exporter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Poller runs collection passes in the background on a fixed interval.
type Poller struct {
	scheduler gocron.Scheduler
	exporter  *Exporter
	interval  time.Duration
}

// NewPoller creates a poller for the exporter.
func NewPoller(exporter *Exporter, interval time.Duration) (*Poller, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Poller{scheduler: s, exporter: exporter, interval: interval}, nil
}

// Start schedules the first pass immediately and then one per interval.
// Passes never overlap.
func (p *Poller) Start(ctx context.Context) error {
	_, err := p.scheduler.NewJob(
		gocron.DurationJob(p.interval),
		gocron.NewTask(func() { p.poll(ctx) }),
		gocron.WithName("collect-pull-request-metrics"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to create periodic collection job: %w", err)
	}
	p.exporter.logger.Info().Dur("interval", p.interval).Msg("Starting background collection")
	p.scheduler.Start()
	return nil
}

// Stop waits for a running pass and shuts the scheduler down.
func (p *Poller) Stop() error {
	return p.scheduler.Shutdown()
}

func (p *Poller) poll(ctx context.Context) {
	if err := p.exporter.CollectOnce(ctx); err != nil {
		p.exporter.logger.Warn().Err(err).Msg("Background collection failed")
	}
}
