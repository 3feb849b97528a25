package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-reservation-service/internal/inventory"
	"github.com/fekuna/omnipos-reservation-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-reservation-service/internal/model"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Config struct {
	// DefaultTTL applies to reservations created without an explicit TTL.
	// Zero means such reservations never expire.
	DefaultTTL time.Duration
	Metrics    *metrics.Metrics
	// Now is overridable in tests.
	Now func() time.Time
}

type inventoryUseCase struct {
	repo       inventory.Repository
	idem       inventory.IdempotencyStore
	publisher  inventory.MovementPublisher
	validate   *validator.Validate
	defaultTTL time.Duration
	metrics    *metrics.Metrics
	now        func() time.Time
	tracer     trace.Tracer
	logger     logger.ZapLogger
}

// NewInventoryUseCase builds the reservation engine. idem and publisher may be nil.
func NewInventoryUseCase(repo inventory.Repository, idem inventory.IdempotencyStore, publisher inventory.MovementPublisher, cfg Config, log logger.ZapLogger) inventory.UseCase {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &inventoryUseCase{
		repo:       repo,
		idem:       idem,
		publisher:  publisher,
		validate:   validator.New(),
		defaultTTL: cfg.DefaultTTL,
		metrics:    cfg.Metrics,
		now:        func() time.Time { return now().UTC() },
		tracer:     otel.Tracer("omnipos-reservation/inventory"),
		logger:     log,
	}
}

func (uc *inventoryUseCase) Reserve(ctx context.Context, input *dto.ReserveInput) (res *model.Reservation, err error) {
	ctx, done := uc.begin(ctx, "reserve", attribute.String("inventory_record_id", input.InventoryRecordID))
	defer func() { done(err) }()

	if err := uc.validateInput(input); err != nil {
		return nil, err
	}

	if input.IdempotencyKey == "" || uc.idem == nil {
		return uc.reserve(ctx, input)
	}

	existingID, acquired, err := uc.idem.Begin(ctx, input.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existingID != "" {
		uc.logger.Debug("Replaying reservation for idempotency key",
			zap.String("idempotency_key", input.IdempotencyKey),
			zap.String("reservation_id", existingID),
		)
		prior, err := uc.repo.GetReservation(ctx, existingID)
		if err != nil {
			return nil, err
		}
		if prior.InventoryRecordID != input.InventoryRecordID || prior.RequestedQuantity != input.RequestedQuantity {
			return nil, &inventory.ValidationError{Field: "idempotency_key", Reason: "was already used for a different reservation request"}
		}
		return prior, nil
	}
	if !acquired {
		return nil, &inventory.ConcurrencyError{
			Op:  "reserve",
			Err: fmt.Errorf("request with idempotency key %q is in flight", input.IdempotencyKey),
		}
	}

	res, err = uc.reserve(ctx, input)
	if err != nil {
		if relErr := uc.idem.Release(context.WithoutCancel(ctx), input.IdempotencyKey); relErr != nil {
			uc.logger.Warn("Failed to release idempotency key", zap.String("idempotency_key", input.IdempotencyKey), zap.Error(relErr))
		}
		return nil, err
	}
	if cErr := uc.idem.Complete(context.WithoutCancel(ctx), input.IdempotencyKey, res.ID); cErr != nil {
		uc.logger.Warn("Failed to store idempotency result", zap.String("idempotency_key", input.IdempotencyKey), zap.Error(cErr))
	}
	return res, nil
}

func (uc *inventoryUseCase) reserve(ctx context.Context, input *dto.ReserveInput) (*model.Reservation, error) {
	now := uc.now()

	res := &model.Reservation{
		ID:                uuid.New().String(),
		InventoryRecordID: input.InventoryRecordID,
		FulfillmentRef:    optional(input.FulfillmentRef),
		RequestedQuantity: input.RequestedQuantity,
		Status:            model.ReservationStatusActive,
		ReservedBy:        optional(input.ReservedBy),
		ReservedAt:        now,
		Notes:             input.Notes,
	}
	ttl := input.TTL
	if ttl == 0 {
		ttl = uc.defaultTTL
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		res.ExpiresAt = &expiresAt
	}

	err := uc.repo.WithTx(ctx, func(tx inventory.Tx) error {
		rec, err := tx.LockRecord(ctx, input.InventoryRecordID)
		if err != nil {
			return err
		}

		if available := rec.Available(); available < input.RequestedQuantity {
			return &inventory.InsufficientStockError{
				InventoryRecordID: rec.ID,
				Requested:         input.RequestedQuantity,
				Available:         available,
			}
		}

		rec.ReservedQuantity += input.RequestedQuantity
		rec.UpdatedAt = now
		if err := tx.UpdateRecordQuantities(ctx, rec); err != nil {
			return err
		}
		return tx.InsertReservation(ctx, res)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("Stock reserved",
		zap.String("reservation_id", res.ID),
		zap.String("inventory_record_id", res.InventoryRecordID),
		zap.Int64("quantity", res.RequestedQuantity),
	)
	return res, nil
}

func (uc *inventoryUseCase) Cancel(ctx context.Context, input *dto.CancelInput) (res *model.Reservation, err error) {
	ctx, done := uc.begin(ctx, "cancel", attribute.String("reservation_id", input.ReservationID))
	defer func() { done(err) }()

	if err := uc.validateInput(input); err != nil {
		return nil, err
	}

	res, _, err = uc.release(ctx, input.ReservationID, model.ReservationStatusCancelled, optional(input.CancelledBy))
	if err != nil {
		return nil, err
	}
	uc.logger.Info("Reservation cancelled", zap.String("reservation_id", res.ID), zap.Int64("quantity", res.RequestedQuantity))
	return res, nil
}

func (uc *inventoryUseCase) Fulfill(ctx context.Context, input *dto.FulfillInput) (res *model.Reservation, mv *model.Movement, err error) {
	ctx, done := uc.begin(ctx, "fulfill", attribute.String("reservation_id", input.ReservationID))
	defer func() { done(err) }()

	if err := uc.validateInput(input); err != nil {
		return nil, nil, err
	}

	res, mv, err = uc.release(ctx, input.ReservationID, model.ReservationStatusFulfilled, optional(input.FulfilledBy))
	if err != nil {
		return nil, nil, err
	}

	uc.logger.Info("Reservation fulfilled",
		zap.String("reservation_id", res.ID),
		zap.String("inventory_record_id", res.InventoryRecordID),
		zap.Int64("quantity", res.RequestedQuantity),
	)
	uc.publish(ctx, mv)
	return res, mv, nil
}

// Expire is the sweeper's transition. It uses the same guard as Cancel and
// additionally refuses reservations whose TTL has not elapsed.
func (uc *inventoryUseCase) Expire(ctx context.Context, reservationID string) (res *model.Reservation, err error) {
	ctx, done := uc.begin(ctx, "expire", attribute.String("reservation_id", reservationID))
	defer func() { done(err) }()

	if err := uc.validate.Var(reservationID, "required,uuid"); err != nil {
		return nil, &inventory.ValidationError{Field: "reservation_id", Reason: "must be a uuid"}
	}

	res, _, err = uc.release(ctx, reservationID, model.ReservationStatusExpired, nil)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("Reservation expired", zap.String("reservation_id", res.ID), zap.Int64("quantity", res.RequestedQuantity))
	return res, nil
}

// release moves an active reservation into a terminal status and returns its
// quantity to the ledger. Fulfilling also removes the units from the total
// and writes the movement entry.
func (uc *inventoryUseCase) release(ctx context.Context, reservationID string, to model.ReservationStatus, actor *string) (*model.Reservation, *model.Movement, error) {
	now := uc.now()
	var (
		res *model.Reservation
		mv  *model.Movement
	)

	err := uc.repo.WithTx(ctx, func(tx inventory.Tx) error {
		var err error
		res, err = tx.LockReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if !res.Status.CanTransitionTo(to) {
			return &inventory.StateTransitionError{ReservationID: res.ID, From: res.Status, To: to}
		}
		if to == model.ReservationStatusExpired && !res.IsExpiredAt(now) {
			return &inventory.ValidationError{Field: "expires_at", Reason: "has not elapsed"}
		}

		rec, err := tx.LockRecord(ctx, res.InventoryRecordID)
		if err != nil {
			return err
		}

		qty := res.RequestedQuantity
		if rec.ReservedQuantity < qty {
			return fmt.Errorf("ledger %s reserves %d but reservation %s holds %d",
				rec.ID, rec.ReservedQuantity, res.ID, qty)
		}

		totalBefore, reservedBefore := rec.TotalQuantity, rec.ReservedQuantity
		rec.ReservedQuantity -= qty
		if to == model.ReservationStatusFulfilled {
			rec.TotalQuantity -= qty
		}
		rec.UpdatedAt = now

		res.Stamp(to, actor, now)
		if err := tx.UpdateReservationStatus(ctx, res); err != nil {
			return err
		}
		if err := tx.UpdateRecordQuantities(ctx, rec); err != nil {
			return err
		}

		if to != model.ReservationStatusFulfilled {
			return nil
		}
		mv = &model.Movement{
			ID:                uuid.New().String(),
			InventoryRecordID: rec.ID,
			ReservationID:     &res.ID,
			Reason:            model.MovementReasonReservationFulfilled,
			QuantityChange:    -qty,
			TotalBefore:       totalBefore,
			TotalAfter:        rec.TotalQuantity,
			ReservedBefore:    reservedBefore,
			ReservedAfter:     rec.ReservedQuantity,
			Notes:             res.Notes,
			CreatedBy:         actor,
			CreatedAt:         now,
		}
		return tx.InsertMovement(ctx, mv)
	})
	if err != nil {
		return nil, nil, err
	}
	return res, mv, nil
}

func (uc *inventoryUseCase) GetAvailability(ctx context.Context, recordID string) (*model.Availability, error) {
	if err := uc.validate.Var(recordID, "required,uuid"); err != nil {
		return nil, &inventory.ValidationError{Field: "inventory_record_id", Reason: "must be a uuid"}
	}

	rec, err := uc.repo.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	availability := rec.Availability()
	return &availability, nil
}

func (uc *inventoryUseCase) CheckConsistency(ctx context.Context, recordID string) (*dto.ConsistencyReport, error) {
	if err := uc.validate.Var(recordID, "required,uuid"); err != nil {
		return nil, &inventory.ValidationError{Field: "inventory_record_id", Reason: "must be a uuid"}
	}

	report := &dto.ConsistencyReport{InventoryRecordID: recordID}
	err := uc.repo.WithTx(ctx, func(tx inventory.Tx) error {
		rec, err := tx.LockRecord(ctx, recordID)
		if err != nil {
			return err
		}
		sum, count, err := tx.SumActiveReservations(ctx, recordID)
		if err != nil {
			return err
		}
		report.ReservedQuantity = rec.ReservedQuantity
		report.ActiveReserved = sum
		report.ActiveCount = count
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.Consistent() {
		uc.logger.Error("Reserved quantity drifted from active reservations",
			zap.String("inventory_record_id", recordID),
			zap.Int64("reserved_quantity", report.ReservedQuantity),
			zap.Int64("active_reserved", report.ActiveReserved),
		)
	}
	return report, nil
}

func (uc *inventoryUseCase) CreateRecord(ctx context.Context, input *dto.CreateRecordInput) (rec *model.InventoryRecord, err error) {
	ctx, done := uc.begin(ctx, "create_record", attribute.String("sku", input.SKU))
	defer func() { done(err) }()

	if err := uc.validateInput(input); err != nil {
		return nil, err
	}

	now := uc.now()
	rec = &model.InventoryRecord{
		ID:            uuid.New().String(),
		SKU:           input.SKU,
		Location:      input.Location,
		WarehouseID:   input.WarehouseID,
		TotalQuantity: input.InitialQuantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var mv *model.Movement
	err = uc.repo.WithTx(ctx, func(tx inventory.Tx) error {
		if err := tx.InsertRecord(ctx, rec); err != nil {
			return err
		}
		if input.InitialQuantity == 0 {
			return nil
		}
		mv = &model.Movement{
			ID:                uuid.New().String(),
			InventoryRecordID: rec.ID,
			Reason:            model.MovementReasonReceipt,
			QuantityChange:    input.InitialQuantity,
			TotalAfter:        input.InitialQuantity,
			Notes:             "initial receipt",
			CreatedBy:         optional(input.CreatedBy),
			CreatedAt:         now,
		}
		return tx.InsertMovement(ctx, mv)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("Inventory record created",
		zap.String("inventory_record_id", rec.ID),
		zap.String("sku", rec.SKU),
		zap.String("location", rec.Location),
		zap.Int64("quantity", rec.TotalQuantity),
	)
	uc.publish(ctx, mv)
	return rec, nil
}

// AdjustStock changes the physical quantity of a record. The total may never
// drop below what is currently reserved.
func (uc *inventoryUseCase) AdjustStock(ctx context.Context, input *dto.AdjustStockInput) (rec *model.InventoryRecord, mv *model.Movement, err error) {
	ctx, done := uc.begin(ctx, "adjust", attribute.String("inventory_record_id", input.InventoryRecordID))
	defer func() { done(err) }()

	if err := uc.validateInput(input); err != nil {
		return nil, nil, err
	}

	now := uc.now()
	err = uc.repo.WithTx(ctx, func(tx inventory.Tx) error {
		var err error
		rec, err = tx.LockRecord(ctx, input.InventoryRecordID)
		if err != nil {
			return err
		}

		totalBefore := rec.TotalQuantity
		if totalBefore+input.QuantityChange > model.MaxQuantity {
			return &inventory.ValidationError{Field: "QuantityChange", Reason: "would raise the total above the maximum quantity"}
		}
		if totalBefore+input.QuantityChange < rec.ReservedQuantity {
			return &inventory.InsufficientStockError{
				InventoryRecordID: rec.ID,
				Requested:         -input.QuantityChange,
				Available:         rec.Available(),
			}
		}

		rec.TotalQuantity += input.QuantityChange
		rec.UpdatedAt = now
		if err := tx.UpdateRecordQuantities(ctx, rec); err != nil {
			return err
		}

		mv = &model.Movement{
			ID:                uuid.New().String(),
			InventoryRecordID: rec.ID,
			Reason:            model.MovementReasonAdjustment,
			QuantityChange:    input.QuantityChange,
			TotalBefore:       totalBefore,
			TotalAfter:        rec.TotalQuantity,
			ReservedBefore:    rec.ReservedQuantity,
			ReservedAfter:     rec.ReservedQuantity,
			Notes:             input.Reason,
			CreatedBy:         optional(input.AdjustedBy),
			CreatedAt:         now,
		}
		return tx.InsertMovement(ctx, mv)
	})
	if err != nil {
		return nil, nil, err
	}

	uc.logger.Info("Stock adjusted",
		zap.String("inventory_record_id", rec.ID),
		zap.Int64("quantity_change", input.QuantityChange),
		zap.Int64("total_quantity", rec.TotalQuantity),
	)
	uc.publish(ctx, mv)
	return rec, mv, nil
}

func (uc *inventoryUseCase) ListRecords(ctx context.Context, filters *dto.RecordFilters) ([]model.InventoryRecord, int, error) {
	return uc.repo.FindRecords(ctx, filters)
}

func (uc *inventoryUseCase) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	if err := uc.validate.Var(id, "required,uuid"); err != nil {
		return nil, &inventory.ValidationError{Field: "reservation_id", Reason: "must be a uuid"}
	}
	return uc.repo.GetReservation(ctx, id)
}

func (uc *inventoryUseCase) ListReservations(ctx context.Context, filters *dto.ReservationFilters) ([]model.Reservation, int, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, 0, &inventory.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown value %q", filters.Status)}
	}
	return uc.repo.ListReservations(ctx, filters)
}

func (uc *inventoryUseCase) ListExpiredReservationIDs(ctx context.Context, limit int) ([]string, error) {
	return uc.repo.ListExpiredReservationIDs(ctx, uc.now(), limit)
}

func (uc *inventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.Movement, int, error) {
	return uc.repo.ListMovements(ctx, filters)
}

// publish forwards a committed movement. Failures are logged and never undo
// the ledger change.
func (uc *inventoryUseCase) publish(ctx context.Context, mv *model.Movement) {
	if mv == nil || uc.publisher == nil {
		return
	}
	if err := uc.publisher.PublishMovement(context.WithoutCancel(ctx), mv); err != nil {
		uc.metrics.IncPublishFailure()
		uc.logger.Error("Failed to publish stock movement",
			zap.String("movement_id", mv.ID),
			zap.String("inventory_record_id", mv.InventoryRecordID),
			zap.Error(err),
		)
	}
}

func (uc *inventoryUseCase) validateInput(input interface{}) error {
	err := uc.validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &inventory.ValidationError{
			Field:  verrs[0].Field(),
			Reason: fmt.Sprintf("failed %q check", verrs[0].Tag()),
		}
	}
	return &inventory.ValidationError{Reason: err.Error()}
}

// begin opens a span and returns a closer that records the outcome.
func (uc *inventoryUseCase) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	started := time.Now()
	ctx, span := uc.tracer.Start(ctx, "inventory."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		uc.metrics.ObserveOperation(op, outcome(err), started)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, inventory.ErrInvalidStateTransition):
		return "invalid_state"
	case errors.Is(err, inventory.ErrNotFound):
		return "not_found"
	case errors.Is(err, inventory.ErrValidation):
		return "invalid"
	case errors.Is(err, inventory.ErrConcurrentModification):
		return "conflict"
	}
	return "error"
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
