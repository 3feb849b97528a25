package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fekuna/omnipos-reservation-service/internal/inventory"
	"github.com/fekuna/omnipos-reservation-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-reservation-service/internal/model"
)

// MemoryRepository keeps the ledger in process memory. One mutex guards the
// whole store and is held for the duration of a WithTx call, so transactions
// are fully serialised. Writes are staged and only applied when fn succeeds.
type MemoryRepository struct {
	mu           sync.Mutex
	records      map[string]model.InventoryRecord
	reservations map[string]model.Reservation
	movements    []model.Movement
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records:      make(map[string]model.InventoryRecord),
		reservations: make(map[string]model.Reservation),
	}
}

func (r *MemoryRepository) WithTx(ctx context.Context, fn func(tx inventory.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memTx{
		parent:       r,
		records:      make(map[string]model.InventoryRecord),
		reservations: make(map[string]model.Reservation),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for id, rec := range tx.records {
		r.records[id] = rec
	}
	for id, res := range tx.reservations {
		r.reservations[id] = res
	}
	r.movements = append(r.movements, tx.movements...)
	return nil
}

func (r *MemoryRepository) GetRecord(ctx context.Context, id string) (*model.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, &inventory.NotFoundError{Entity: "inventory record", ID: id}
	}
	return &rec, nil
}

func (r *MemoryRepository) FindRecords(ctx context.Context, f *dto.RecordFilters) ([]model.InventoryRecord, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := []model.InventoryRecord{}
	for _, rec := range r.records {
		if f.SKU != "" && rec.SKU != f.SKU {
			continue
		}
		if f.Location != "" && rec.Location != f.Location {
			continue
		}
		if f.WarehouseID != "" && rec.WarehouseID != f.WarehouseID {
			continue
		}
		items = append(items, rec)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return page(items, f.Page, f.PageSize), len(items), nil
}

func (r *MemoryRepository) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[id]
	if !ok {
		return nil, &inventory.NotFoundError{Entity: "reservation", ID: id}
	}
	return &res, nil
}

func (r *MemoryRepository) ListReservations(ctx context.Context, f *dto.ReservationFilters) ([]model.Reservation, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := []model.Reservation{}
	for _, res := range r.reservations {
		if f.InventoryRecordID != "" && res.InventoryRecordID != f.InventoryRecordID {
			continue
		}
		if f.FulfillmentRef != "" && (res.FulfillmentRef == nil || *res.FulfillmentRef != f.FulfillmentRef) {
			continue
		}
		if f.Status != "" && res.Status != f.Status {
			continue
		}
		items = append(items, res)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].ReservedAt.Equal(items[j].ReservedAt) {
			return items[i].ReservedAt.After(items[j].ReservedAt)
		}
		return items[i].ID < items[j].ID
	})
	return page(items, f.Page, f.PageSize), len(items), nil
}

func (r *MemoryRepository) ListExpiredReservationIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultExpiredBatch
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	expired := []model.Reservation{}
	for _, res := range r.reservations {
		if res.Status == model.ReservationStatusActive && res.IsExpiredAt(now) {
			expired = append(expired, res)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(*expired[j].ExpiresAt)
	})

	ids := []string{}
	for _, res := range expired {
		if len(ids) == limit {
			break
		}
		ids = append(ids, res.ID)
	}
	return ids, nil
}

func (r *MemoryRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.Movement, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := []model.Movement{}
	for _, m := range r.movements {
		if f.InventoryRecordID != "" && m.InventoryRecordID != f.InventoryRecordID {
			continue
		}
		if f.ReservationID != "" && (m.ReservationID == nil || *m.ReservationID != f.ReservationID) {
			continue
		}
		if f.Reason != "" && m.Reason != f.Reason {
			continue
		}
		if f.StartDate != nil && m.CreatedAt.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && !m.CreatedAt.Before(*f.EndDate) {
			continue
		}
		items = append(items, m)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return page(items, f.Page, f.PageSize), len(items), nil
}

type memTx struct {
	parent       *MemoryRepository
	records      map[string]model.InventoryRecord
	reservations map[string]model.Reservation
	movements    []model.Movement
}

func (t *memTx) record(id string) (model.InventoryRecord, bool) {
	if rec, ok := t.records[id]; ok {
		return rec, true
	}
	rec, ok := t.parent.records[id]
	return rec, ok
}

func (t *memTx) reservation(id string) (model.Reservation, bool) {
	if res, ok := t.reservations[id]; ok {
		return res, true
	}
	res, ok := t.parent.reservations[id]
	return res, ok
}

func (t *memTx) LockRecord(ctx context.Context, id string) (*model.InventoryRecord, error) {
	rec, ok := t.record(id)
	if !ok {
		return nil, &inventory.NotFoundError{Entity: "inventory record", ID: id}
	}
	return &rec, nil
}

func (t *memTx) InsertRecord(ctx context.Context, rec *model.InventoryRecord) error {
	if _, ok := t.record(rec.ID); ok {
		return &inventory.ValidationError{Field: "id", Reason: "already exists"}
	}
	t.records[rec.ID] = *rec
	return nil
}

func (t *memTx) UpdateRecordQuantities(ctx context.Context, rec *model.InventoryRecord) error {
	current, ok := t.record(rec.ID)
	if !ok {
		return &inventory.NotFoundError{Entity: "inventory record", ID: rec.ID}
	}
	current.TotalQuantity = rec.TotalQuantity
	current.ReservedQuantity = rec.ReservedQuantity
	current.UpdatedAt = rec.UpdatedAt
	t.records[rec.ID] = current
	return nil
}

func (t *memTx) LockReservation(ctx context.Context, id string) (*model.Reservation, error) {
	res, ok := t.reservation(id)
	if !ok {
		return nil, &inventory.NotFoundError{Entity: "reservation", ID: id}
	}
	return &res, nil
}

func (t *memTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	if _, ok := t.record(res.InventoryRecordID); !ok {
		return &inventory.NotFoundError{Entity: "inventory record", ID: res.InventoryRecordID}
	}
	t.reservations[res.ID] = *res
	return nil
}

func (t *memTx) UpdateReservationStatus(ctx context.Context, res *model.Reservation) error {
	current, ok := t.reservation(res.ID)
	if !ok {
		return &inventory.NotFoundError{Entity: "reservation", ID: res.ID}
	}
	if current.Status != model.ReservationStatusActive {
		return &inventory.StateTransitionError{ReservationID: res.ID, From: current.Status, To: res.Status}
	}
	t.reservations[res.ID] = *res
	return nil
}

func (t *memTx) SumActiveReservations(ctx context.Context, recordID string) (int64, int, error) {
	var sum int64
	var count int
	seen := make(map[string]bool, len(t.reservations))
	visit := func(res model.Reservation) {
		if res.InventoryRecordID == recordID && res.Status == model.ReservationStatusActive {
			sum += res.RequestedQuantity
			count++
		}
	}
	for id, res := range t.reservations {
		seen[id] = true
		visit(res)
	}
	for id, res := range t.parent.reservations {
		if !seen[id] {
			visit(res)
		}
	}
	return sum, count, nil
}

func (t *memTx) InsertMovement(ctx context.Context, m *model.Movement) error {
	t.movements = append(t.movements, *m)
	return nil
}

func page[T any](items []T, page, pageSize int) []T {
	if pageSize <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
