package listener

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fekuna/omnipos-reservation-service/internal/inventory"
	"github.com/fekuna/omnipos-reservation-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-reservation-service/internal/model"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventPickTaskCreated  = "PickTaskCreated"
	EventPickConfirmed    = "PickConfirmed"
	EventPickTaskReleased = "PickTaskReleased"
)

// MessageReader is satisfied by broker.KafkaConsumer.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// InventoryListener drives the reservation engine from picking workflow
// events: a created pick task reserves stock, a confirmed pick fulfills the
// hold and a released pick task cancels it.
type InventoryListener struct {
	consumer MessageReader
	uc       inventory.UseCase
	logger   logger.ZapLogger

	maxAttempts int
	backoff     time.Duration
}

func NewInventoryListener(consumer MessageReader, uc inventory.UseCase, logger logger.ZapLogger) *InventoryListener {
	return &InventoryListener{
		consumer:    consumer,
		uc:          uc,
		logger:      logger,
		maxAttempts: 5,
		backoff:     100 * time.Millisecond,
	}
}

func (l *InventoryListener) Start(ctx context.Context) {
	l.logger.Info("Starting pick task Kafka listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping pick task Kafka listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

type PickTaskEvent struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   PickTaskPayload `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type PickTaskPayload struct {
	PickTaskID        string `json:"pick_task_id"`
	InventoryRecordID string `json:"inventory_record_id"`
	ReservationID     string `json:"reservation_id"`
	Quantity          int64  `json:"quantity"`
	Actor             string `json:"actor"`
	Notes             string `json:"notes"`
}

func (l *InventoryListener) processMessage(ctx context.Context, value []byte) {
	var event PickTaskEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	log := l.logger.With(
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("pick_task_id", event.Payload.PickTaskID),
	)

	var err error
	switch event.EventType {
	case EventPickTaskCreated:
		err = l.reserve(ctx, &event.Payload, log)
	case EventPickConfirmed:
		err = l.settle(ctx, event.Payload.ReservationID, model.ReservationStatusFulfilled, func() error {
			_, _, err := l.uc.Fulfill(ctx, &dto.FulfillInput{
				ReservationID: event.Payload.ReservationID,
				FulfilledBy:   event.Payload.Actor,
			})
			return err
		})
	case EventPickTaskReleased:
		err = l.settle(ctx, event.Payload.ReservationID, model.ReservationStatusCancelled, func() error {
			_, err := l.uc.Cancel(ctx, &dto.CancelInput{
				ReservationID: event.Payload.ReservationID,
				CancelledBy:   event.Payload.Actor,
			})
			return err
		})
	default:
		return
	}

	switch {
	case err == nil:
		log.Info("Processed pick task event")
	case errors.Is(err, inventory.ErrInsufficientStock):
		log.Warn("Not enough stock to reserve for pick task", zap.Error(err))
	case errors.Is(err, inventory.ErrInvalidStateTransition):
		log.Warn("Hold was already released or fulfilled", zap.Error(err))
	default:
		log.Error("Failed to process pick task event", zap.Error(err))
	}
}

// reserve keys the reservation by pick task so a redelivered event does not
// create a second hold.
func (l *InventoryListener) reserve(ctx context.Context, p *PickTaskPayload, log logger.ZapLogger) error {
	return l.retry(ctx, func() error {
		res, err := l.uc.Reserve(ctx, &dto.ReserveInput{
			InventoryRecordID: p.InventoryRecordID,
			RequestedQuantity: p.Quantity,
			FulfillmentRef:    p.PickTaskID,
			ReservedBy:        p.Actor,
			Notes:             p.Notes,
			IdempotencyKey:    "pick-task:" + p.PickTaskID,
		})
		if err == nil {
			log.Debug("Reserved stock for pick task", zap.String("reservation_id", res.ID))
		}
		return err
	})
}

// settle runs a cancel or fulfill. Before each retry it re-reads the
// reservation: a timed-out attempt may have committed, and retrying is only
// safe while the reservation is still active. A reservation that reached some
// other terminal status in the meantime is reported as a state transition error.
func (l *InventoryListener) settle(ctx context.Context, reservationID string, target model.ReservationStatus, op func() error) error {
	first := true
	return l.retry(ctx, func() error {
		if !first {
			res, err := l.uc.GetReservation(ctx, reservationID)
			if err != nil {
				return err
			}
			switch res.Status {
			case target:
				return nil
			case model.ReservationStatusActive:
			default:
				return &inventory.StateTransitionError{ReservationID: res.ID, From: res.Status, To: target}
			}
		}
		first = false
		return op()
	})
}

func (l *InventoryListener) retry(ctx context.Context, fn func() error) error {
	wait := l.backoff
	var err error
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		err = fn()
		if err == nil || !inventory.IsRetryable(err) {
			return err
		}
		l.logger.Warn("Retrying after concurrent modification", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
