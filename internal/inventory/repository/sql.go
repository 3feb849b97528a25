package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-reservation-service/internal/inventory"
	"github.com/fekuna/omnipos-reservation-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-reservation-service/internal/model"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/database/postgres"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

const (
	recordColumns = `id, sku, location, warehouse_id, total_quantity, reserved_quantity, created_at, updated_at`

	reservationColumns = `id, inventory_record_id, fulfillment_ref, requested_quantity, status,
        reserved_by, reserved_at, expires_at, cancelled_by, cancelled_at,
        fulfilled_by, fulfilled_at, expired_at, notes`

	movementColumns = `id, inventory_record_id, reservation_id, reason, quantity_change,
        total_before, total_after, reserved_before, reserved_after, notes, created_by, created_at`
)

// DefaultExpiredBatch caps ListExpiredReservationIDs when no positive limit is given.
const DefaultExpiredBatch = 100

// SQLRepository stores the ledger in Postgres (pgx driver) or SQLite.
// Queries are written with '?' placeholders and rebound per driver.
type SQLRepository struct {
	DB          *sqlx.DB
	lockTimeout time.Duration
	postgres    bool
}

func NewSQLRepository(db *sqlx.DB, lockTimeout time.Duration) *SQLRepository {
	return &SQLRepository{
		DB:          db,
		lockTimeout: lockTimeout,
		postgres:    db.DriverName() == postgres.DriverName,
	}
}

func (r *SQLRepository) WithTx(ctx context.Context, fn func(tx inventory.Tx) error) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer tx.Rollback()

	if r.postgres && r.lockTimeout > 0 {
		// SET LOCAL does not accept bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return classify("set lock timeout", err)
		}
	}

	if err := fn(&sqlTx{tx: tx, postgres: r.postgres}); err != nil {
		return classify("transaction", err)
	}

	if err := tx.Commit(); err != nil {
		return classify("commit", err)
	}
	return nil
}

func (r *SQLRepository) GetRecord(ctx context.Context, id string) (*model.InventoryRecord, error) {
	var rec model.InventoryRecord
	query := r.DB.Rebind(`SELECT ` + recordColumns + ` FROM inventory_records WHERE id = ?`)
	if err := r.DB.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &inventory.NotFoundError{Entity: "inventory record", ID: id}
		}
		return nil, fmt.Errorf("get inventory record: %w", err)
	}
	return &rec, nil
}

func (r *SQLRepository) FindRecords(ctx context.Context, f *dto.RecordFilters) ([]model.InventoryRecord, int, error) {
	w := &where{}
	w.eq("sku", f.SKU)
	w.eq("location", f.Location)
	w.eq("warehouse_id", f.WarehouseID)

	var count int
	if err := r.DB.GetContext(ctx, &count, r.DB.Rebind("SELECT count(*) FROM inventory_records"+w.clause()), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count inventory records: %w", err)
	}

	query := "SELECT " + recordColumns + " FROM inventory_records" + w.clause() + " ORDER BY updated_at DESC, id" + paginate(f.Page, f.PageSize)
	items := []model.InventoryRecord{}
	if err := r.DB.SelectContext(ctx, &items, r.DB.Rebind(query), w.args...); err != nil {
		return nil, 0, fmt.Errorf("list inventory records: %w", err)
	}
	return items, count, nil
}

func (r *SQLRepository) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	var res model.Reservation
	query := r.DB.Rebind(`SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`)
	if err := r.DB.GetContext(ctx, &res, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &inventory.NotFoundError{Entity: "reservation", ID: id}
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return &res, nil
}

func (r *SQLRepository) ListReservations(ctx context.Context, f *dto.ReservationFilters) ([]model.Reservation, int, error) {
	w := &where{}
	w.eq("inventory_record_id", f.InventoryRecordID)
	w.eq("fulfillment_ref", f.FulfillmentRef)
	w.eq("status", string(f.Status))

	var count int
	if err := r.DB.GetContext(ctx, &count, r.DB.Rebind("SELECT count(*) FROM reservations"+w.clause()), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}

	query := "SELECT " + reservationColumns + " FROM reservations" + w.clause() + " ORDER BY reserved_at DESC, id" + paginate(f.Page, f.PageSize)
	items := []model.Reservation{}
	if err := r.DB.SelectContext(ctx, &items, r.DB.Rebind(query), w.args...); err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	return items, count, nil
}

func (r *SQLRepository) ListExpiredReservationIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultExpiredBatch
	}
	query := r.DB.Rebind(`
        SELECT id FROM reservations
        WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?
        ORDER BY expires_at
        LIMIT ?
    `)
	ids := []string{}
	if err := r.DB.SelectContext(ctx, &ids, query, model.ReservationStatusActive, now, limit); err != nil {
		return nil, fmt.Errorf("list expired reservations: %w", err)
	}
	return ids, nil
}

func (r *SQLRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.Movement, int, error) {
	w := &where{}
	w.eq("inventory_record_id", f.InventoryRecordID)
	w.eq("reservation_id", f.ReservationID)
	w.eq("reason", string(f.Reason))
	if f.StartDate != nil {
		w.add("created_at >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		w.add("created_at < ?", *f.EndDate)
	}

	var count int
	if err := r.DB.GetContext(ctx, &count, r.DB.Rebind("SELECT count(*) FROM inventory_movements"+w.clause()), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count movements: %w", err)
	}

	query := "SELECT " + movementColumns + " FROM inventory_movements" + w.clause() + " ORDER BY created_at DESC, id" + paginate(f.Page, f.PageSize)
	items := []model.Movement{}
	if err := r.DB.SelectContext(ctx, &items, r.DB.Rebind(query), w.args...); err != nil {
		return nil, 0, fmt.Errorf("list movements: %w", err)
	}
	return items, count, nil
}

type sqlTx struct {
	tx       *sqlx.Tx
	postgres bool
}

func (t *sqlTx) LockRecord(ctx context.Context, id string) (*model.InventoryRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM inventory_records WHERE id = ?`
	if t.postgres {
		query += ` FOR UPDATE`
	}

	var rec model.InventoryRecord
	if err := t.tx.GetContext(ctx, &rec, t.tx.Rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &inventory.NotFoundError{Entity: "inventory record", ID: id}
		}
		return nil, fmt.Errorf("lock inventory record: %w", err)
	}
	return &rec, nil
}

func (t *sqlTx) InsertRecord(ctx context.Context, rec *model.InventoryRecord) error {
	query := `
        INSERT INTO inventory_records (` + recordColumns + `)
        VALUES (:id, :sku, :location, :warehouse_id, :total_quantity, :reserved_quantity, :created_at, :updated_at)
    `
	if _, err := t.tx.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("insert inventory record: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateRecordQuantities(ctx context.Context, rec *model.InventoryRecord) error {
	query := t.tx.Rebind(`
        UPDATE inventory_records
        SET total_quantity = ?, reserved_quantity = ?, updated_at = ?
        WHERE id = ?
    `)
	res, err := t.tx.ExecContext(ctx, query, rec.TotalQuantity, rec.ReservedQuantity, rec.UpdatedAt, rec.ID)
	if err != nil {
		return fmt.Errorf("update inventory record: %w", err)
	}
	return expectOneRow(res, "inventory record", rec.ID)
}

func (t *sqlTx) LockReservation(ctx context.Context, id string) (*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	if t.postgres {
		query += ` FOR UPDATE`
	}

	var res model.Reservation
	if err := t.tx.GetContext(ctx, &res, t.tx.Rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &inventory.NotFoundError{Entity: "reservation", ID: id}
		}
		return nil, fmt.Errorf("lock reservation: %w", err)
	}
	return &res, nil
}

func (t *sqlTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	query := `
        INSERT INTO reservations (` + reservationColumns + `)
        VALUES (
            :id, :inventory_record_id, :fulfillment_ref, :requested_quantity, :status,
            :reserved_by, :reserved_at, :expires_at, :cancelled_by, :cancelled_at,
            :fulfilled_by, :fulfilled_at, :expired_at, :notes
        )
    `
	if _, err := t.tx.NamedExecContext(ctx, query, res); err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// UpdateReservationStatus only moves rows that are still active, so a stale
// caller can never overwrite a terminal state.
func (t *sqlTx) UpdateReservationStatus(ctx context.Context, res *model.Reservation) error {
	query := t.tx.Rebind(`
        UPDATE reservations
        SET status = ?, cancelled_by = ?, cancelled_at = ?, fulfilled_by = ?, fulfilled_at = ?, expired_at = ?
        WHERE id = ? AND status = ?
    `)
	result, err := t.tx.ExecContext(ctx, query,
		res.Status, res.CancelledBy, res.CancelledAt, res.FulfilledBy, res.FulfilledAt, res.ExpiredAt,
		res.ID, model.ReservationStatusActive,
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%w: reservation %s is no longer active", inventory.ErrInvalidStateTransition, res.ID)
	}
	return nil
}

func (t *sqlTx) SumActiveReservations(ctx context.Context, recordID string) (int64, int, error) {
	var row struct {
		Sum   int64 `db:"total"`
		Count int   `db:"cnt"`
	}
	query := t.tx.Rebind(`
        SELECT COALESCE(SUM(requested_quantity), 0) AS total, COUNT(*) AS cnt
        FROM reservations
        WHERE inventory_record_id = ? AND status = ?
    `)
	if err := t.tx.GetContext(ctx, &row, query, recordID, model.ReservationStatusActive); err != nil {
		return 0, 0, fmt.Errorf("sum active reservations: %w", err)
	}
	return row.Sum, row.Count, nil
}

func (t *sqlTx) InsertMovement(ctx context.Context, m *model.Movement) error {
	query := `
        INSERT INTO inventory_movements (` + movementColumns + `)
        VALUES (
            :id, :inventory_record_id, :reservation_id, :reason, :quantity_change,
            :total_before, :total_after, :reserved_before, :reserved_after, :notes, :created_by, :created_at
        )
    `
	if _, err := t.tx.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("log movement: %w", err)
	}
	return nil
}

func expectOneRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &inventory.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

// classify keeps domain errors as they are and turns lock contention into
// ErrConcurrentModification.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, inventory.ErrNotFound),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrInvalidStateTransition),
		errors.Is(err, inventory.ErrValidation),
		errors.Is(err, inventory.ErrConcurrentModification):
		return err
	case isContention(err):
		return &inventory.ConcurrencyError{Op: op, Err: err}
	case isUniqueViolation(err):
		return &inventory.ValidationError{Reason: "already exists: " + err.Error()}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isContention(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", // lock_not_available
			"40001", // serialization_failure
			"40P01": // deadlock_detected
			return true
		}
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

type where struct {
	conditions []string
	args       []interface{}
}

func (w *where) add(cond string, arg interface{}) {
	w.conditions = append(w.conditions, cond)
	w.args = append(w.args, arg)
}

func (w *where) eq(column, value string) {
	if value != "" {
		w.add(column+" = ?", value)
	}
}

func (w *where) clause() string {
	if len(w.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conditions, " AND ")
}

func paginate(page, pageSize int) string {
	if pageSize <= 0 {
		return ""
	}
	if page < 1 {
		page = 1
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
}
