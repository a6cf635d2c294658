package district

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper drives the periodic recalculation and threshold sweeps.
// One sweeper owns all districts so no district is ever recalculated
// by two goroutines at once.
type Sweeper struct {
	engine            *Engine
	scheduler         *Scheduler
	districts         []string
	recalcInterval    time.Duration
	thresholdInterval time.Duration
	stopChan          chan struct{}
	stopOnce          sync.Once
	logger            *zap.Logger
}

// NewSweeper creates the periodic sweep driver
func NewSweeper(engine *Engine, scheduler *Scheduler, districts []string, recalcInterval, thresholdInterval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		engine:            engine,
		scheduler:         scheduler,
		districts:         districts,
		recalcInterval:    recalcInterval,
		thresholdInterval: thresholdInterval,
		stopChan:          make(chan struct{}),
		logger:            logger,
	}
}

// Start begins the sweep loops
func (s *Sweeper) Start() {
	recalcTicker := time.NewTicker(s.recalcInterval)
	thresholdTicker := time.NewTicker(s.thresholdInterval)
	go func() {
		defer recalcTicker.Stop()
		defer thresholdTicker.Stop()
		for {
			select {
			case <-recalcTicker.C:
				s.RecalculateAll(context.Background())
			case <-thresholdTicker.C:
				s.RunThresholdSweep(context.Background())
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop halts the sweep loops. Safe to call repeatedly and without a
// prior Start.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// RecalculateAll folds pending events for every district. A failing district
// is logged and skipped; partial-batch failure is expected, not fatal.
func (s *Sweeper) RecalculateAll(ctx context.Context) {
	start := time.Now()
	failed := 0
	for _, districtID := range s.districts {
		if _, err := s.engine.Recalculate(ctx, districtID); err != nil {
			failed++
			s.logger.Error("District recalculation failed",
				zap.String("district_id", districtID),
				zap.Error(err))
		}
	}
	s.logger.Info("Recalculation sweep completed",
		zap.Int("districts", len(s.districts)),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)))
}

// RunThresholdSweep closes expired threshold events, then opens fresh
// crossings
func (s *Sweeper) RunThresholdSweep(ctx context.Context) {
	closed := s.scheduler.CloseExpired(ctx)
	opened := s.scheduler.CheckThresholds(ctx)
	s.logger.Info("Threshold sweep completed",
		zap.Int("opened", opened),
		zap.Int("closed", closed))
}
