package app

import (
	"context"
	"fmt"
	"time"

	"bedplanner/internal/metrics"
	"bedplanner/internal/stays"

	"github.com/go-co-op/gocron/v2"
	"github.com/golang-sql/civil"
	"go.uber.org/zap"
)

// censusJob refreshes the bed gauges from the registries.
type censusJob struct {
	regs    stays.Registries
	metrics *metrics.Metrics
	logger  *zap.Logger
	today   func() civil.Date
}

func (j *censusJob) run(ctx context.Context) {
	census, err := stays.TakeCensus(ctx, j.regs.Beds, j.regs.Stays, j.today())
	if err != nil {
		j.logger.Warn("bed census failed", zap.Error(err))
		return
	}
	j.metrics.SetBeds(census.Occupied, census.Free, census.Unavailable)
	j.logger.Debug("bed census",
		zap.Int("occupied", census.Occupied),
		zap.Int("free", census.Free),
		zap.Int("unavailable", census.Unavailable),
	)
}

// scheduleCensus starts a scheduler running job every interval, first run
// immediately. Runs never overlap.
func (a *App) scheduleCensus(job *censusJob, every time.Duration) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(job.run),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		s.Shutdown()
		return fmt.Errorf("schedule census: %w", err)
	}
	s.Start()
	a.closers = append(a.closers, s.Shutdown)
	return nil
}

func today() civil.Date {
	return civil.DateOf(time.Now())
}
