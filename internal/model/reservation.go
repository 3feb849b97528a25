package model

import (
	"fmt"
	"time"
)

type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusFulfilled ReservationStatus = "fulfilled"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// transitions is the only place the reservation lifecycle is defined.
var transitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusActive: {
		ReservationStatusFulfilled,
		ReservationStatusCancelled,
		ReservationStatusExpired,
	},
}

func ParseReservationStatus(s string) (ReservationStatus, error) {
	status := ReservationStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown reservation status %q", s)
	}
	return status, nil
}

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationStatusActive, ReservationStatusFulfilled, ReservationStatusCancelled, ReservationStatusExpired:
		return true
	}
	return false
}

func (s ReservationStatus) IsTerminal() bool {
	return s.Valid() && s != ReservationStatusActive
}

func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Reservation is a soft hold of RequestedQuantity units against an InventoryRecord.
type Reservation struct {
	ID                string            `db:"id" json:"id"`
	InventoryRecordID string            `db:"inventory_record_id" json:"inventory_record_id"`
	FulfillmentRef    *string           `db:"fulfillment_ref" json:"fulfillment_ref,omitempty"`
	RequestedQuantity int64             `db:"requested_quantity" json:"requested_quantity"`
	Status            ReservationStatus `db:"status" json:"status"`
	ReservedBy        *string           `db:"reserved_by" json:"reserved_by,omitempty"`
	ReservedAt        time.Time         `db:"reserved_at" json:"reserved_at"`
	ExpiresAt         *time.Time        `db:"expires_at" json:"expires_at,omitempty"`
	CancelledBy       *string           `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelledAt       *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	FulfilledBy       *string           `db:"fulfilled_by" json:"fulfilled_by,omitempty"`
	FulfilledAt       *time.Time        `db:"fulfilled_at" json:"fulfilled_at,omitempty"`
	ExpiredAt         *time.Time        `db:"expired_at" json:"expired_at,omitempty"`
	Notes             string            `db:"notes" json:"notes"`
}

// IsExpiredAt reports whether the reservation carries a TTL that has elapsed at now.
func (r *Reservation) IsExpiredAt(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// Stamp moves the reservation into a terminal status and records who did it.
// The caller must have checked CanTransitionTo.
func (r *Reservation) Stamp(to ReservationStatus, actor *string, at time.Time) {
	r.Status = to
	switch to {
	case ReservationStatusCancelled:
		r.CancelledBy = actor
		r.CancelledAt = &at
	case ReservationStatusFulfilled:
		r.FulfilledBy = actor
		r.FulfilledAt = &at
	case ReservationStatusExpired:
		r.ExpiredAt = &at
	}
}
