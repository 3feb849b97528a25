package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/fekuna/omnipos-reservation-service/internal/inventory"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/metrics"
	"go.uber.org/zap"
)

// Sweeper periodically expires active reservations whose TTL has elapsed.
type Sweeper struct {
	uc        inventory.UseCase
	interval  time.Duration
	batchSize int
	metrics   *metrics.Metrics
	logger    logger.ZapLogger
}

const (
	defaultSweepInterval = time.Minute
	defaultSweepBatch    = 100
)

// NewSweeper falls back to the defaults for a non-positive interval or batch size.
func NewSweeper(uc inventory.UseCase, interval time.Duration, batchSize int, m *metrics.Metrics, log logger.ZapLogger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if batchSize <= 0 {
		batchSize = defaultSweepBatch
	}
	return &Sweeper{
		uc:        uc,
		interval:  interval,
		batchSize: batchSize,
		metrics:   m,
		logger:    log,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting reservation expiration sweeper", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping reservation expiration sweeper")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Reservation sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce expires at most one batch and returns how many reservations it
// moved to expired. Each reservation is expired in its own transaction; one
// that was fulfilled or cancelled in the meantime is skipped.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	ids, err := s.uc.ListExpiredReservationIDs(ctx, s.batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		_, err := s.uc.Expire(ctx, id)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, inventory.ErrInvalidStateTransition):
			s.logger.Debug("Reservation left active state before sweep", zap.String("reservation_id", id))
		case errors.Is(err, inventory.ErrConcurrentModification):
			s.logger.Warn("Reservation locked, will retry next sweep", zap.String("reservation_id", id))
		default:
			s.logger.Error("Failed to expire reservation", zap.String("reservation_id", id), zap.Error(err))
		}
	}

	s.metrics.AddSweepExpired(expired)
	if expired > 0 {
		s.logger.Info("Expired reservations", zap.Int("count", expired))
	}
	return expired, nil
}
