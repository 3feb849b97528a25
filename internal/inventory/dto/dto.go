package dto

import (
	"time"

	"github.com/fekuna/omnipos-reservation-service/internal/model"
)

type RecordFilters struct {
	SKU         string
	Location    string
	WarehouseID string
	Page        int
	PageSize    int
}

type ReservationFilters struct {
	InventoryRecordID string
	FulfillmentRef    string
	Status            model.ReservationStatus
	Page              int
	PageSize          int
}

type MovementFilters struct {
	InventoryRecordID string
	ReservationID     string
	Reason            model.MovementReason
	StartDate         *time.Time
	EndDate           *time.Time
	Page              int
	PageSize          int
}

// ConsistencyReport compares the ledger's reserved quantity with the sum of
// active reservations on the same record.
type ConsistencyReport struct {
	InventoryRecordID string
	ReservedQuantity  int64
	ActiveReserved    int64
	ActiveCount       int
}

func (r *ConsistencyReport) Consistent() bool {
	return r.ReservedQuantity == r.ActiveReserved
}
