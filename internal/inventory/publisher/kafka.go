package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-reservation-service/internal/model"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const EventTypeStockMovementRecorded = "StockMovementRecorded"

type MovementEvent struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Payload   model.Movement `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// Producer is satisfied by broker.KafkaProducer.
type Producer interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

// MovementPublisher sends committed movements to Kafka, keyed by inventory
// record so one record's movements stay ordered within a partition.
type MovementPublisher struct {
	producer Producer
	breaker  *gobreaker.CircuitBreaker
	logger   logger.ZapLogger
}

type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

func NewMovementPublisher(producer Producer, cfg BreakerConfig, log logger.ZapLogger) *MovementPublisher {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "movement-publisher",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &MovementPublisher{producer: producer, breaker: breaker, logger: log}
}

func (p *MovementPublisher) PublishMovement(ctx context.Context, m *model.Movement) error {
	event := MovementEvent{
		EventID:   uuid.New().String(),
		EventType: EventTypeStockMovementRecorded,
		Payload:   *m,
		Timestamp: m.CreatedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal movement event: %w", err)
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.producer.Publish(ctx, []byte(m.InventoryRecordID), data,
			kafka.Header{Key: "event-type", Value: []byte(EventTypeStockMovementRecorded)},
			kafka.Header{Key: "event-id", Value: []byte(event.EventID)},
		)
	})
	if err != nil {
		return fmt.Errorf("publish movement %s: %w", m.ID, err)
	}
	return nil
}
