package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fekuna/omnipos-reservation-service/internal/model"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	key, value []byte
	headers    []kafka.Header
}

type fakeProducer struct {
	sent []sentMessage
	err  error
}

func (p *fakeProducer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sentMessage{key: key, value: value, headers: headers})
	return nil
}

func testMovement() *model.Movement {
	resID := "3b2f7f7e-7c43-4c36-9a43-0c1f6f0f2a11"
	return &model.Movement{
		ID:                "9d0b5a3c-1f2e-4d5c-8b7a-6e5f4d3c2b1a",
		InventoryRecordID: "5e1c9a0b-8d7f-4e6a-9b3c-2d1e0f9a8b7c",
		ReservationID:     &resID,
		Reason:            model.MovementReasonReservationFulfilled,
		QuantityChange:    -5,
		TotalBefore:       50,
		TotalAfter:        45,
		ReservedBefore:    20,
		ReservedAfter:     15,
		CreatedAt:         time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestPublishMovement(t *testing.T) {
	producer := &fakeProducer{}
	p := NewMovementPublisher(producer, BreakerConfig{MaxRequests: 1, Timeout: time.Second, ConsecutiveFailures: 3}, logger.NewNop())
	mv := testMovement()

	require.NoError(t, p.PublishMovement(context.Background(), mv))
	require.Len(t, producer.sent, 1)

	msg := producer.sent[0]
	assert.Equal(t, mv.InventoryRecordID, string(msg.key))

	var event MovementEvent
	require.NoError(t, json.Unmarshal(msg.value, &event))
	assert.Equal(t, EventTypeStockMovementRecorded, event.EventType)
	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, mv.ID, event.Payload.ID)
	assert.Equal(t, int64(-5), event.Payload.QuantityChange)
	assert.True(t, mv.CreatedAt.Equal(event.Timestamp))

	require.Len(t, msg.headers, 2)
	assert.Equal(t, "event-type", msg.headers[0].Key)
	assert.Equal(t, EventTypeStockMovementRecorded, string(msg.headers[0].Value))
}

func TestPublishMovementOpensBreaker(t *testing.T) {
	producer := &fakeProducer{err: errors.New("no brokers")}
	p := NewMovementPublisher(producer, BreakerConfig{MaxRequests: 1, Timeout: time.Minute, ConsecutiveFailures: 2}, logger.NewNop())

	for i := 0; i < 2; i++ {
		err := p.PublishMovement(context.Background(), testMovement())
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	producer.err = nil
	err := p.PublishMovement(context.Background(), testMovement())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Empty(t, producer.sent)
}
