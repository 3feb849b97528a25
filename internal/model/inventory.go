package model

import "time"

// MaxQuantity bounds every stored quantity and every single change to one, so
// ledger arithmetic cannot overflow int64. Keep in sync with the dto tags.
const MaxQuantity int64 = 1_000_000_000_000

// InventoryRecord is the quantity-of-record for one SKU at one location.
type InventoryRecord struct {
	ID               string    `db:"id" json:"id"`
	SKU              string    `db:"sku" json:"sku"`
	Location         string    `db:"location" json:"location"`
	WarehouseID      string    `db:"warehouse_id" json:"warehouse_id"`
	TotalQuantity    int64     `db:"total_quantity" json:"total_quantity"`
	ReservedQuantity int64     `db:"reserved_quantity" json:"reserved_quantity"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Available is the number of units a caller may still promise.
func (r *InventoryRecord) Available() int64 {
	return r.TotalQuantity - r.ReservedQuantity
}

func (r *InventoryRecord) Availability() Availability {
	return Availability{
		InventoryRecordID: r.ID,
		Total:             r.TotalQuantity,
		Reserved:          r.ReservedQuantity,
		Available:         r.Available(),
	}
}

type Availability struct {
	InventoryRecordID string `json:"inventory_record_id"`
	Total             int64  `json:"total"`
	Reserved          int64  `json:"reserved"`
	Available         int64  `json:"available"`
}

type MovementReason string

const (
	MovementReasonReservationFulfilled MovementReason = "reservation_fulfilled"
	MovementReasonReceipt              MovementReason = "receipt"
	MovementReasonAdjustment           MovementReason = "adjustment"
)

// Movement is one append-only entry of the stock movement log.
type Movement struct {
	ID                string         `db:"id" json:"id"`
	InventoryRecordID string         `db:"inventory_record_id" json:"inventory_record_id"`
	ReservationID     *string        `db:"reservation_id" json:"reservation_id,omitempty"`
	Reason            MovementReason `db:"reason" json:"reason"`
	QuantityChange    int64          `db:"quantity_change" json:"quantity_change"`
	TotalBefore       int64          `db:"total_before" json:"total_before"`
	TotalAfter        int64          `db:"total_after" json:"total_after"`
	ReservedBefore    int64          `db:"reserved_before" json:"reserved_before"`
	ReservedAfter     int64          `db:"reserved_after" json:"reserved_after"`
	Notes             string         `db:"notes" json:"notes"`
	CreatedBy         *string        `db:"created_by" json:"created_by,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}
