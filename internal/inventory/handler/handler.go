package handler

import (
	"context"
	"errors"
	"time"

	reservationv1 "github.com/fekuna/omnipos-reservation-service/api/reservationv1"
	"github.com/fekuna/omnipos-reservation-service/internal/auth"
	"github.com/fekuna/omnipos-reservation-service/internal/inventory"
	"github.com/fekuna/omnipos-reservation-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-reservation-service/internal/model"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type InventoryHandler struct {
	reservationv1.UnimplementedReservationServiceServer
	uc     inventory.UseCase
	logger logger.ZapLogger
}

func NewInventoryHandler(uc inventory.UseCase, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *InventoryHandler) ReserveStock(ctx context.Context, req *reservationv1.ReserveStockRequest) (*reservationv1.ReserveStockResponse, error) {
	if req.TTLSeconds < 0 {
		return nil, status.Error(codes.InvalidArgument, "ttl_seconds must not be negative")
	}

	input := &dto.ReserveInput{
		InventoryRecordID: req.InventoryRecordID,
		RequestedQuantity: req.RequestedQuantity,
		FulfillmentRef:    req.FulfillmentRef,
		ReservedBy:        actor(ctx, req.ReservedBy),
		Notes:             req.Notes,
		TTL:               time.Duration(req.TTLSeconds) * time.Second,
		IdempotencyKey:    req.IdempotencyKey,
	}

	res, err := h.uc.Reserve(ctx, input)
	if err != nil {
		return nil, h.toStatus(ctx, "ReserveStock", err)
	}

	return &reservationv1.ReserveStockResponse{
		ReservationID: res.ID,
		Reservation:   mapReservationToProto(res),
	}, nil
}

func (h *InventoryHandler) CancelReservation(ctx context.Context, req *reservationv1.CancelReservationRequest) (*reservationv1.CancelReservationResponse, error) {
	res, err := h.uc.Cancel(ctx, &dto.CancelInput{
		ReservationID: req.ReservationID,
		CancelledBy:   actor(ctx, req.CancelledBy),
	})
	if err != nil {
		return nil, h.toStatus(ctx, "CancelReservation", err)
	}
	return &reservationv1.CancelReservationResponse{Reservation: mapReservationToProto(res)}, nil
}

func (h *InventoryHandler) FulfillReservation(ctx context.Context, req *reservationv1.FulfillReservationRequest) (*reservationv1.FulfillReservationResponse, error) {
	res, mv, err := h.uc.Fulfill(ctx, &dto.FulfillInput{
		ReservationID: req.ReservationID,
		FulfilledBy:   actor(ctx, req.FulfilledBy),
	})
	if err != nil {
		return nil, h.toStatus(ctx, "FulfillReservation", err)
	}
	return &reservationv1.FulfillReservationResponse{
		Reservation: mapReservationToProto(res),
		Movement:    mapMovementToProto(mv),
	}, nil
}

func (h *InventoryHandler) GetAvailability(ctx context.Context, req *reservationv1.GetAvailabilityRequest) (*reservationv1.Availability, error) {
	a, err := h.uc.GetAvailability(ctx, req.InventoryRecordID)
	if err != nil {
		return nil, h.toStatus(ctx, "GetAvailability", err)
	}
	return &reservationv1.Availability{
		InventoryRecordID: a.InventoryRecordID,
		Total:             a.Total,
		Reserved:          a.Reserved,
		Available:         a.Available,
	}, nil
}

func (h *InventoryHandler) GetReservation(ctx context.Context, req *reservationv1.GetReservationRequest) (*reservationv1.Reservation, error) {
	res, err := h.uc.GetReservation(ctx, req.ReservationID)
	if err != nil {
		return nil, h.toStatus(ctx, "GetReservation", err)
	}
	return mapReservationToProto(res), nil
}

func (h *InventoryHandler) ListReservations(ctx context.Context, req *reservationv1.ListReservationsRequest) (*reservationv1.ListReservationsResponse, error) {
	filters := &dto.ReservationFilters{
		InventoryRecordID: req.InventoryRecordID,
		FulfillmentRef:    req.FulfillmentRef,
		Status:            model.ReservationStatus(req.Status),
		Page:              int(req.Page),
		PageSize:          int(req.PageSize),
	}

	items, count, err := h.uc.ListReservations(ctx, filters)
	if err != nil {
		return nil, h.toStatus(ctx, "ListReservations", err)
	}

	reservations := make([]*reservationv1.Reservation, len(items))
	for i := range items {
		reservations[i] = mapReservationToProto(&items[i])
	}

	return &reservationv1.ListReservationsResponse{
		Reservations: reservations,
		Total:        int32(count),
	}, nil
}

func (h *InventoryHandler) CreateInventoryRecord(ctx context.Context, req *reservationv1.CreateInventoryRecordRequest) (*reservationv1.InventoryRecord, error) {
	rec, err := h.uc.CreateRecord(ctx, &dto.CreateRecordInput{
		SKU:             req.SKU,
		Location:        req.Location,
		WarehouseID:     req.WarehouseID,
		InitialQuantity: req.InitialQuantity,
		CreatedBy:       actor(ctx, req.CreatedBy),
	})
	if err != nil {
		return nil, h.toStatus(ctx, "CreateInventoryRecord", err)
	}
	return mapRecordToProto(rec), nil
}

func (h *InventoryHandler) AdjustStock(ctx context.Context, req *reservationv1.AdjustStockRequest) (*reservationv1.AdjustStockResponse, error) {
	rec, mv, err := h.uc.AdjustStock(ctx, &dto.AdjustStockInput{
		InventoryRecordID: req.InventoryRecordID,
		QuantityChange:    req.QuantityChange,
		Reason:            req.Reason,
		AdjustedBy:        actor(ctx, req.AdjustedBy),
	})
	if err != nil {
		return nil, h.toStatus(ctx, "AdjustStock", err)
	}
	return &reservationv1.AdjustStockResponse{
		Record:   mapRecordToProto(rec),
		Movement: mapMovementToProto(mv),
	}, nil
}

func (h *InventoryHandler) ListMovements(ctx context.Context, req *reservationv1.ListMovementsRequest) (*reservationv1.ListMovementsResponse, error) {
	filters := &dto.MovementFilters{
		InventoryRecordID: req.InventoryRecordID,
		ReservationID:     req.ReservationID,
		Reason:            model.MovementReason(req.Reason),
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		Page:              int(req.Page),
		PageSize:          int(req.PageSize),
	}

	mvs, count, err := h.uc.ListMovements(ctx, filters)
	if err != nil {
		return nil, h.toStatus(ctx, "ListMovements", err)
	}

	movements := make([]*reservationv1.Movement, len(mvs))
	for i := range mvs {
		movements[i] = mapMovementToProto(&mvs[i])
	}

	return &reservationv1.ListMovementsResponse{
		Movements: movements,
		Total:     int32(count),
	}, nil
}

// toStatus translates engine errors into gRPC statuses. Unclassified errors
// are logged and hidden behind codes.Internal.
func (h *InventoryHandler) toStatus(ctx context.Context, method string, err error) error {
	var verr *inventory.ValidationError
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, inventory.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, "not enough stock to reserve")
	case errors.Is(err, inventory.ErrInvalidStateTransition):
		return status.Error(codes.FailedPrecondition, "this hold was already released or fulfilled")
	case errors.Is(err, inventory.ErrConcurrentModification):
		return status.Error(codes.Aborted, err.Error())
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, verr.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	h.logger.Error("Request failed",
		zap.String("method", method),
		zap.String("request_id", auth.GetRequestID(ctx)),
		zap.Error(err),
	)
	return status.Error(codes.Internal, "internal error")
}

// actor prefers the identity carried in the request and falls back to the
// caller's x-user-id. Both may be empty.
func actor(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return auth.GetUserID(ctx)
}

func mapRecordToProto(m *model.InventoryRecord) *reservationv1.InventoryRecord {
	if m == nil {
		return nil
	}
	return &reservationv1.InventoryRecord{
		ID:               m.ID,
		SKU:              m.SKU,
		Location:         m.Location,
		WarehouseID:      m.WarehouseID,
		TotalQuantity:    m.TotalQuantity,
		ReservedQuantity: m.ReservedQuantity,
		Available:        m.Available(),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func mapReservationToProto(m *model.Reservation) *reservationv1.Reservation {
	if m == nil {
		return nil
	}
	return &reservationv1.Reservation{
		ID:                m.ID,
		InventoryRecordID: m.InventoryRecordID,
		FulfillmentRef:    deref(m.FulfillmentRef),
		RequestedQuantity: m.RequestedQuantity,
		Status:            string(m.Status),
		ReservedBy:        deref(m.ReservedBy),
		ReservedAt:        m.ReservedAt,
		ExpiresAt:         m.ExpiresAt,
		CancelledBy:       deref(m.CancelledBy),
		CancelledAt:       m.CancelledAt,
		FulfilledBy:       deref(m.FulfilledBy),
		FulfilledAt:       m.FulfilledAt,
		ExpiredAt:         m.ExpiredAt,
		Notes:             m.Notes,
	}
}

func mapMovementToProto(m *model.Movement) *reservationv1.Movement {
	if m == nil {
		return nil
	}
	return &reservationv1.Movement{
		ID:                m.ID,
		InventoryRecordID: m.InventoryRecordID,
		ReservationID:     deref(m.ReservationID),
		Reason:            string(m.Reason),
		QuantityChange:    m.QuantityChange,
		TotalBefore:       m.TotalBefore,
		TotalAfter:        m.TotalAfter,
		ReservedBefore:    m.ReservedBefore,
		ReservedAfter:     m.ReservedAfter,
		Notes:             m.Notes,
		CreatedBy:         deref(m.CreatedBy),
		CreatedAt:         m.CreatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
