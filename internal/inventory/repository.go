package inventory

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-reservation-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-reservation-service/internal/model"
)

type Repository interface {
	// WithTx runs fn in one atomic unit. Either everything fn wrote commits or
	// nothing does. Lock contention surfaces as ErrConcurrentModification.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Ledger reads
	GetRecord(ctx context.Context, id string) (*model.InventoryRecord, error)
	FindRecords(ctx context.Context, filters *dto.RecordFilters) ([]model.InventoryRecord, int, error)

	// Reservation reads
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	ListReservations(ctx context.Context, filters *dto.ReservationFilters) ([]model.Reservation, int, error)
	ListExpiredReservationIDs(ctx context.Context, now time.Time, limit int) ([]string, error)

	// Movements / Audit
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.Movement, int, error)
}

// Tx is the view of the store inside one atomic unit. Lock* methods hold the
// row until the unit ends; lock reservations before records.
type Tx interface {
	LockRecord(ctx context.Context, id string) (*model.InventoryRecord, error)
	InsertRecord(ctx context.Context, rec *model.InventoryRecord) error
	UpdateRecordQuantities(ctx context.Context, rec *model.InventoryRecord) error

	LockReservation(ctx context.Context, id string) (*model.Reservation, error)
	InsertReservation(ctx context.Context, res *model.Reservation) error
	UpdateReservationStatus(ctx context.Context, res *model.Reservation) error
	SumActiveReservations(ctx context.Context, recordID string) (sum int64, count int, err error)

	InsertMovement(ctx context.Context, m *model.Movement) error
}

// IdempotencyStore remembers which reservation a client-supplied key produced.
type IdempotencyStore interface {
	// Begin returns the reservation id of a completed key, or claims the key.
	// acquired is false when another request holds the key.
	Begin(ctx context.Context, key string) (reservationID string, acquired bool, err error)
	Complete(ctx context.Context, key, reservationID string) error
	Release(ctx context.Context, key string) error
}

// MovementPublisher forwards committed movements to downstream consumers.
// It runs after commit and never takes part in a ledger decision.
type MovementPublisher interface {
	PublishMovement(ctx context.Context, m *model.Movement) error
}
