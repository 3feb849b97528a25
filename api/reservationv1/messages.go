package reservationv1

import "time"

type ReserveStockRequest struct {
	InventoryRecordID string `json:"inventory_record_id"`
	RequestedQuantity int64  `json:"requested_quantity"`
	FulfillmentRef    string `json:"fulfillment_ref,omitempty"`
	ReservedBy        string `json:"reserved_by,omitempty"`
	Notes             string `json:"notes,omitempty"`
	TTLSeconds        int64  `json:"ttl_seconds,omitempty"`
	IdempotencyKey    string `json:"idempotency_key,omitempty"`
}

type ReserveStockResponse struct {
	ReservationID string       `json:"reservation_id"`
	Reservation   *Reservation `json:"reservation"`
}

type CancelReservationRequest struct {
	ReservationID string `json:"reservation_id"`
	CancelledBy   string `json:"cancelled_by,omitempty"`
}

type CancelReservationResponse struct {
	Reservation *Reservation `json:"reservation"`
}

type FulfillReservationRequest struct {
	ReservationID string `json:"reservation_id"`
	FulfilledBy   string `json:"fulfilled_by,omitempty"`
}

type FulfillReservationResponse struct {
	Reservation *Reservation `json:"reservation"`
	Movement    *Movement    `json:"movement"`
}

type GetAvailabilityRequest struct {
	InventoryRecordID string `json:"inventory_record_id"`
}

type Availability struct {
	InventoryRecordID string `json:"inventory_record_id"`
	Total             int64  `json:"total"`
	Reserved          int64  `json:"reserved"`
	Available         int64  `json:"available"`
}

type GetReservationRequest struct {
	ReservationID string `json:"reservation_id"`
}

type ListReservationsRequest struct {
	InventoryRecordID string `json:"inventory_record_id,omitempty"`
	FulfillmentRef    string `json:"fulfillment_ref,omitempty"`
	Status            string `json:"status,omitempty"`
	Page              int32  `json:"page,omitempty"`
	PageSize          int32  `json:"page_size,omitempty"`
}

type ListReservationsResponse struct {
	Reservations []*Reservation `json:"reservations"`
	Total        int32          `json:"total"`
}

type CreateInventoryRecordRequest struct {
	SKU             string `json:"sku"`
	Location        string `json:"location"`
	WarehouseID     string `json:"warehouse_id"`
	InitialQuantity int64  `json:"initial_quantity"`
	CreatedBy       string `json:"created_by,omitempty"`
}

type AdjustStockRequest struct {
	InventoryRecordID string `json:"inventory_record_id"`
	QuantityChange    int64  `json:"quantity_change"`
	Reason            string `json:"reason,omitempty"`
	AdjustedBy        string `json:"adjusted_by,omitempty"`
}

type AdjustStockResponse struct {
	Record   *InventoryRecord `json:"record"`
	Movement *Movement        `json:"movement"`
}

type ListMovementsRequest struct {
	InventoryRecordID string     `json:"inventory_record_id,omitempty"`
	ReservationID     string     `json:"reservation_id,omitempty"`
	Reason            string     `json:"reason,omitempty"`
	StartDate         *time.Time `json:"start_date,omitempty"`
	EndDate           *time.Time `json:"end_date,omitempty"`
	Page              int32      `json:"page,omitempty"`
	PageSize          int32      `json:"page_size,omitempty"`
}

type ListMovementsResponse struct {
	Movements []*Movement `json:"movements"`
	Total     int32       `json:"total"`
}

type InventoryRecord struct {
	ID               string    `json:"id"`
	SKU              string    `json:"sku"`
	Location         string    `json:"location"`
	WarehouseID      string    `json:"warehouse_id"`
	TotalQuantity    int64     `json:"total_quantity"`
	ReservedQuantity int64     `json:"reserved_quantity"`
	Available        int64     `json:"available"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Reservation struct {
	ID                string     `json:"id"`
	InventoryRecordID string     `json:"inventory_record_id"`
	FulfillmentRef    string     `json:"fulfillment_ref,omitempty"`
	RequestedQuantity int64      `json:"requested_quantity"`
	Status            string     `json:"status"`
	ReservedBy        string     `json:"reserved_by,omitempty"`
	ReservedAt        time.Time  `json:"reserved_at"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	CancelledBy       string     `json:"cancelled_by,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	FulfilledBy       string     `json:"fulfilled_by,omitempty"`
	FulfilledAt       *time.Time `json:"fulfilled_at,omitempty"`
	ExpiredAt         *time.Time `json:"expired_at,omitempty"`
	Notes             string     `json:"notes,omitempty"`
}

type Movement struct {
	ID                string    `json:"id"`
	InventoryRecordID string    `json:"inventory_record_id"`
	ReservationID     string    `json:"reservation_id,omitempty"`
	Reason            string    `json:"reason"`
	QuantityChange    int64     `json:"quantity_change"`
	TotalBefore       int64     `json:"total_before"`
	TotalAfter        int64     `json:"total_after"`
	ReservedBefore    int64     `json:"reserved_before"`
	ReservedAfter     int64     `json:"reserved_after"`
	Notes             string    `json:"notes,omitempty"`
	CreatedBy         string    `json:"created_by,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
