package dto

import "time"

type ReserveInput struct {
	InventoryRecordID string        `validate:"required,uuid"`
	RequestedQuantity int64         `validate:"gt=0,max=1000000000000"`
	FulfillmentRef    string        `validate:"max=128"`
	ReservedBy        string        `validate:"max=128"`
	Notes             string        `validate:"max=1024"`
	TTL               time.Duration `validate:"gte=0"`
	IdempotencyKey    string        `validate:"max=128"`
}

type CancelInput struct {
	ReservationID string `validate:"required,uuid"`
	CancelledBy   string `validate:"max=128"`
}

type FulfillInput struct {
	ReservationID string `validate:"required,uuid"`
	FulfilledBy   string `validate:"max=128"`
}

type CreateRecordInput struct {
	SKU             string `validate:"required,max=64"`
	Location        string `validate:"required,max=64"`
	WarehouseID     string `validate:"required,max=64"`
	InitialQuantity int64  `validate:"gte=0,max=1000000000000"`
	CreatedBy       string `validate:"max=128"`
}

// AdjustStockInput is used by receiving and transfer flows to change the
// physical quantity outside of a reservation.
type AdjustStockInput struct {
	InventoryRecordID string `validate:"required,uuid"`
	QuantityChange    int64  `validate:"ne=0,min=-1000000000000,max=1000000000000"`
	Reason            string `validate:"max=1024"`
	AdjustedBy        string `validate:"max=128"`
}
