// Package retention removes old view and share events from the ledger.
// Endorsements are kept forever because endorsement uniqueness is read from them.
package retention

import (
	"context"
	"time"

	"github.com/zfogg/showcase/backend/internal/ledger"
	"github.com/zfogg/showcase/backend/internal/logger"
	"github.com/zfogg/showcase/backend/internal/metrics"
	"github.com/zfogg/showcase/backend/internal/models"
	"github.com/zfogg/showcase/backend/internal/telemetry"
	"go.uber.org/zap"
)

// PurgedKinds are the event kinds the sweep deletes
var PurgedKinds = []models.EventKind{models.KindView, models.KindShare}

// Sweeper periodically purges events older than the retention horizon
type Sweeper struct {
	ledger   ledger.Store
	horizon  time.Duration
	interval time.Duration
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper creates a sweeper. Call Start to run it in the background.
func NewSweeper(store ledger.Store, horizon, interval time.Duration, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		ledger:   store,
		horizon:  horizon,
		interval: interval,
		now:      now,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (s *Sweeper) Start() {
	logger.Log.Info("Starting ledger retention sweeper",
		zap.Duration("horizon", s.horizon),
		zap.Duration("interval", s.interval),
	)
	go s.run()
}

// Stop halts the sweeper and waits for an in-flight sweep to finish
func (s *Sweeper) Stop() {
	logger.Log.Info("Stopping ledger retention sweeper")
	s.cancel()
	<-s.done
}

func (s *Sweeper) run() {
	defer close(s.done)

	// Run immediately on startup
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweep() {
	if _, err := s.SweepOnce(s.ctx); err != nil && s.ctx.Err() == nil {
		logger.ErrorWithFields("Ledger retention sweep failed", err)
	}
}

// SweepOnce deletes view and share events older than the horizon and
// returns how many were removed
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	ctx, span := telemetry.GetBusinessEvents().TraceRetentionSweep(ctx)
	defer span.End()

	startTime := time.Now()
	cutoff := s.now().Add(-s.horizon)

	var total int64
	for _, kind := range PurgedKinds {
		n, err := s.ledger.PurgeBefore(ctx, cutoff, kind)
		if err != nil {
			telemetry.RecordError(span, err)
			return total, err
		}
		metrics.Get().Engagement.RetentionPurged.WithLabelValues(string(kind)).Add(float64(n))
		total += n
	}

	logger.Log.Info("Ledger retention sweep completed",
		zap.Int64("purged", total),
		zap.Time("cutoff", cutoff),
		logger.WithDuration(time.Since(startTime)),
	)
	return total, nil
}
