package inventory

import (
	"context"

	"github.com/fekuna/omnipos-reservation-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-reservation-service/internal/model"
)

type UseCase interface {
	// Reservation engine
	Reserve(ctx context.Context, input *dto.ReserveInput) (*model.Reservation, error)
	Cancel(ctx context.Context, input *dto.CancelInput) (*model.Reservation, error)
	Fulfill(ctx context.Context, input *dto.FulfillInput) (*model.Reservation, *model.Movement, error)
	Expire(ctx context.Context, reservationID string) (*model.Reservation, error)

	// Availability projection
	GetAvailability(ctx context.Context, recordID string) (*model.Availability, error)
	CheckConsistency(ctx context.Context, recordID string) (*dto.ConsistencyReport, error)

	// Ledger maintenance (receiving, transfers)
	CreateRecord(ctx context.Context, input *dto.CreateRecordInput) (*model.InventoryRecord, error)
	AdjustStock(ctx context.Context, input *dto.AdjustStockInput) (*model.InventoryRecord, *model.Movement, error)
	ListRecords(ctx context.Context, filters *dto.RecordFilters) ([]model.InventoryRecord, int, error)

	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	ListReservations(ctx context.Context, filters *dto.ReservationFilters) ([]model.Reservation, int, error)
	ListExpiredReservationIDs(ctx context.Context, limit int) ([]string, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.Movement, int, error)
}
