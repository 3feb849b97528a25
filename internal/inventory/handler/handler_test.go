package handler

import (
	"context"
	"net"
	"testing"

	reservationv1 "github.com/fekuna/omnipos-reservation-service/api/reservationv1"
	"github.com/fekuna/omnipos-reservation-service/internal/auth"
	"github.com/fekuna/omnipos-reservation-service/internal/inventory/repository"
	"github.com/fekuna/omnipos-reservation-service/internal/inventory/usecase"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newTestClient(t *testing.T) reservationv1.ReservationServiceClient {
	t.Helper()

	log := logger.NewNop()
	uc := usecase.NewInventoryUseCase(repository.NewMemoryRepository(), nil, nil, usecase.Config{}, log)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(middleware.ContextInterceptor()))
	reservationv1.RegisterReservationServiceServer(srv, NewInventoryHandler(uc, log))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return reservationv1.NewReservationServiceClient(conn)
}

func createRecord(t *testing.T, client reservationv1.ReservationServiceClient, qty int64) *reservationv1.InventoryRecord {
	t.Helper()
	rec, err := client.CreateInventoryRecord(context.Background(), &reservationv1.CreateInventoryRecordRequest{
		SKU:             "SKU-" + uuid.NewString()[:8],
		Location:        "C-04-02",
		WarehouseID:     "WH-2",
		InitialQuantity: qty,
	})
	require.NoError(t, err)
	return rec
}

func TestReserveFulfillOverGRPC(t *testing.T) {
	client := newTestClient(t)
	rec := createRecord(t, client, 50)
	assert.Equal(t, int64(50), rec.Available)

	ctx := metadata.AppendToOutgoingContext(context.Background(), auth.UserIDHeader, "picker-9")

	reserved, err := client.ReserveStock(ctx, &reservationv1.ReserveStockRequest{
		InventoryRecordID: rec.ID,
		RequestedQuantity: 20,
		FulfillmentRef:    "SO-77",
		TTLSeconds:        600,
	})
	require.NoError(t, err)
	assert.Equal(t, reserved.ReservationID, reserved.Reservation.ID)
	assert.Equal(t, "active", reserved.Reservation.Status)
	assert.Equal(t, "picker-9", reserved.Reservation.ReservedBy, "actor falls back to x-user-id")
	require.NotNil(t, reserved.Reservation.ExpiresAt)

	availability, err := client.GetAvailability(ctx, &reservationv1.GetAvailabilityRequest{InventoryRecordID: rec.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(30), availability.Available)

	fulfilled, err := client.FulfillReservation(ctx, &reservationv1.FulfillReservationRequest{
		ReservationID: reserved.ReservationID,
		FulfilledBy:   "packer-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "fulfilled", fulfilled.Reservation.Status)
	assert.Equal(t, "packer-1", fulfilled.Reservation.FulfilledBy)
	require.NotNil(t, fulfilled.Movement)
	assert.Equal(t, "reservation_fulfilled", fulfilled.Movement.Reason)
	assert.Equal(t, int64(-20), fulfilled.Movement.QuantityChange)
	assert.Equal(t, reserved.ReservationID, fulfilled.Movement.ReservationID)

	availability, err = client.GetAvailability(ctx, &reservationv1.GetAvailabilityRequest{InventoryRecordID: rec.ID})
	require.NoError(t, err)
	assert.Equal(t, reservationv1.Availability{InventoryRecordID: rec.ID, Total: 30, Reserved: 0, Available: 30}, *availability)

	movements, err := client.ListMovements(ctx, &reservationv1.ListMovementsRequest{InventoryRecordID: rec.ID})
	require.NoError(t, err)
	assert.Equal(t, int32(2), movements.Total)
}

func TestCancelAndListOverGRPC(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	rec := createRecord(t, client, 10)

	reserved, err := client.ReserveStock(ctx, &reservationv1.ReserveStockRequest{InventoryRecordID: rec.ID, RequestedQuantity: 4})
	require.NoError(t, err)
	assert.Empty(t, reserved.Reservation.ReservedBy)

	cancelled, err := client.CancelReservation(ctx, &reservationv1.CancelReservationRequest{ReservationID: reserved.ReservationID})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Reservation.Status)
	require.NotNil(t, cancelled.Reservation.CancelledAt)

	got, err := client.GetReservation(ctx, &reservationv1.GetReservationRequest{ReservationID: reserved.ReservationID})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got.Status)

	list, err := client.ListReservations(ctx, &reservationv1.ListReservationsRequest{InventoryRecordID: rec.ID, Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), list.Total)
	require.Len(t, list.Reservations, 1)

	adjusted, err := client.AdjustStock(ctx, &reservationv1.AdjustStockRequest{InventoryRecordID: rec.ID, QuantityChange: 5, Reason: "receiving"})
	require.NoError(t, err)
	assert.Equal(t, int64(15), adjusted.Record.TotalQuantity)
	assert.Equal(t, "adjustment", adjusted.Movement.Reason)
}

func TestErrorMappingOverGRPC(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	rec := createRecord(t, client, 5)

	reserved, err := client.ReserveStock(ctx, &reservationv1.ReserveStockRequest{InventoryRecordID: rec.ID, RequestedQuantity: 5})
	require.NoError(t, err)
	_, err = client.CancelReservation(ctx, &reservationv1.CancelReservationRequest{ReservationID: reserved.ReservationID})
	require.NoError(t, err)

	tests := []struct {
		name    string
		call    func() error
		code    codes.Code
		message string
	}{
		{
			name: "insufficient stock",
			call: func() error {
				_, err := client.ReserveStock(ctx, &reservationv1.ReserveStockRequest{InventoryRecordID: rec.ID, RequestedQuantity: 6})
				return err
			},
			code:    codes.FailedPrecondition,
			message: "not enough stock to reserve",
		},
		{
			name: "already released",
			call: func() error {
				_, err := client.FulfillReservation(ctx, &reservationv1.FulfillReservationRequest{ReservationID: reserved.ReservationID})
				return err
			},
			code:    codes.FailedPrecondition,
			message: "this hold was already released or fulfilled",
		},
		{
			name: "unknown reservation",
			call: func() error {
				_, err := client.CancelReservation(ctx, &reservationv1.CancelReservationRequest{ReservationID: uuid.NewString()})
				return err
			},
			code: codes.NotFound,
		},
		{
			name: "unknown record",
			call: func() error {
				_, err := client.GetAvailability(ctx, &reservationv1.GetAvailabilityRequest{InventoryRecordID: uuid.NewString()})
				return err
			},
			code: codes.NotFound,
		},
		{
			name: "zero quantity",
			call: func() error {
				_, err := client.ReserveStock(ctx, &reservationv1.ReserveStockRequest{InventoryRecordID: rec.ID})
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "negative ttl",
			call: func() error {
				_, err := client.ReserveStock(ctx, &reservationv1.ReserveStockRequest{InventoryRecordID: rec.ID, RequestedQuantity: 1, TTLSeconds: -1})
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "unknown status filter",
			call: func() error {
				_, err := client.ListReservations(ctx, &reservationv1.ListReservationsRequest{Status: "on-hold"})
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "adjust below reserved",
			call: func() error {
				_, err := client.AdjustStock(ctx, &reservationv1.AdjustStockRequest{InventoryRecordID: rec.ID, QuantityChange: -6})
				return err
			},
			code: codes.FailedPrecondition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, st.Code())
			if tt.message != "" {
				assert.Equal(t, tt.message, st.Message())
			}
		})
	}
}
