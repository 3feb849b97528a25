package usecase

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fekuna/omnipos-reservation-service/internal/inventory"
	"github.com/fekuna/omnipos-reservation-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-reservation-service/internal/inventory/repository"
	"github.com/fekuna/omnipos-reservation-service/internal/model"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/database/sqlite"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{entries: make(map[string]string)}
}

func (s *fakeIdempotencyStore) Begin(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.entries[key]
	if !ok {
		s.entries[key] = "pending"
		return "", true, nil
	}
	if val == "pending" {
		return "", false, nil
	}
	return val, false, nil
}

func (s *fakeIdempotencyStore) Complete(ctx context.Context, key, reservationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = reservationID
	return nil
}

func (s *fakeIdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	movements []model.Movement
	err       error
}

func (p *recordingPublisher) PublishMovement(ctx context.Context, m *model.Movement) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.movements = append(p.movements, *m)
	return nil
}

func (p *recordingPublisher) published() []model.Movement {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Movement(nil), p.movements...)
}

type fixture struct {
	uc        inventory.UseCase
	repo      inventory.Repository
	idem      *fakeIdempotencyStore
	publisher *recordingPublisher
	clock     *clock
}

func newFixture(t *testing.T, defaultTTL time.Duration) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, repository.NewMemoryRepository(), defaultTTL)
}

func newFixtureWithRepo(t *testing.T, repo inventory.Repository, defaultTTL time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		repo:      repo,
		idem:      newFakeIdempotencyStore(),
		publisher: &recordingPublisher{},
		clock:     &clock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)},
	}
	f.uc = NewInventoryUseCase(f.repo, f.idem, f.publisher, Config{
		DefaultTTL: defaultTTL,
		Now:        f.clock.Now,
	}, logger.NewNop())
	return f
}

// newFileSQLiteRepository opens a SQLite database on disk so concurrent
// transactions go through separate connections and the database lock.
func newFileSQLiteRepository(t *testing.T) inventory.Repository {
	t.Helper()
	db, err := sqlite.NewSQLite(filepath.Join(t.TempDir(), "reservations.db"), 30000)
	require.NoError(t, err)
	db.SetMaxOpenConns(16)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, repository.Migrate(context.Background(), db))
	return repository.NewSQLRepository(db, 5*time.Second)
}

// forEachStore runs fn against the in-memory store and the SQL store.
func forEachStore(t *testing.T, defaultTTL time.Duration, fn func(t *testing.T, f *fixture)) {
	t.Run("memory", func(t *testing.T) { fn(t, newFixture(t, defaultTTL)) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newFixtureWithRepo(t, newFileSQLiteRepository(t), defaultTTL)) })
}

func (f *fixture) record(t *testing.T, total int64) *model.InventoryRecord {
	t.Helper()
	rec, err := f.uc.CreateRecord(context.Background(), &dto.CreateRecordInput{
		SKU:             "SKU-" + uuid.NewString()[:8],
		Location:        "A-01-03",
		WarehouseID:     "WH-1",
		InitialQuantity: total,
	})
	require.NoError(t, err)
	return rec
}

func (f *fixture) reserve(t *testing.T, recordID string, qty int64) *model.Reservation {
	t.Helper()
	res, err := f.uc.Reserve(context.Background(), &dto.ReserveInput{
		InventoryRecordID: recordID,
		RequestedQuantity: qty,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) availability(t *testing.T, recordID string) *model.Availability {
	t.Helper()
	a, err := f.uc.GetAvailability(context.Background(), recordID)
	require.NoError(t, err)
	return a
}

func (f *fixture) assertConsistent(t *testing.T, recordID string) {
	t.Helper()
	report, err := f.uc.CheckConsistency(context.Background(), recordID)
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "reserved %d, active reservations %d", report.ReservedQuantity, report.ActiveReserved)

	a := f.availability(t, recordID)
	assert.GreaterOrEqual(t, a.Reserved, int64(0))
	assert.LessOrEqual(t, a.Reserved, a.Total)
	assert.Equal(t, a.Total-a.Reserved, a.Available)
}

func TestReserve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	rec := f.record(t, 100)

	res, err := f.uc.Reserve(ctx, &dto.ReserveInput{
		InventoryRecordID: rec.ID,
		RequestedQuantity: 30,
		FulfillmentRef:    "SO-1001",
		ReservedBy:        "clerk-1",
		Notes:             "rush order",
	})
	require.NoError(t, err)

	assert.Equal(t, model.ReservationStatusActive, res.Status)
	assert.Equal(t, int64(30), res.RequestedQuantity)
	require.NotNil(t, res.FulfillmentRef)
	assert.Equal(t, "SO-1001", *res.FulfillmentRef)
	require.NotNil(t, res.ReservedBy)
	assert.Equal(t, "clerk-1", *res.ReservedBy)
	assert.Equal(t, f.clock.Now(), res.ReservedAt)
	assert.Nil(t, res.ExpiresAt)

	a := f.availability(t, rec.ID)
	assert.Equal(t, model.Availability{InventoryRecordID: rec.ID, Total: 100, Reserved: 30, Available: 70}, *a)

	stored, err := f.uc.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, stored.ID)
	f.assertConsistent(t, rec.ID)
}

func TestReserveAnonymousActor(t *testing.T) {
	f := newFixture(t, 0)
	rec := f.record(t, 10)

	res := f.reserve(t, rec.ID, 1)
	assert.Nil(t, res.ReservedBy)
	assert.Nil(t, res.FulfillmentRef)
}

func TestReserveInsufficientStock(t *testing.T) {
	f := newFixture(t, 0)
	rec := f.record(t, 10)
	f.reserve(t, rec.ID, 8)

	_, err := f.uc.Reserve(context.Background(), &dto.ReserveInput{InventoryRecordID: rec.ID, RequestedQuantity: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(3), stockErr.Requested)
	assert.Equal(t, int64(2), stockErr.Available)
	assert.Equal(t, int64(1), stockErr.Shortfall())

	a := f.availability(t, rec.ID)
	assert.Equal(t, int64(8), a.Reserved, "failed reserve leaves the ledger untouched")
	f.assertConsistent(t, rec.ID)
}

func TestReserveBoundaries(t *testing.T) {
	t.Run("exactly available succeeds", func(t *testing.T) {
		f := newFixture(t, 0)
		rec := f.record(t, 25)
		f.reserve(t, rec.ID, 10)

		f.reserve(t, rec.ID, 15)
		assert.Equal(t, int64(0), f.availability(t, rec.ID).Available)
	})

	t.Run("one more than available fails", func(t *testing.T) {
		f := newFixture(t, 0)
		rec := f.record(t, 25)
		f.reserve(t, rec.ID, 10)

		_, err := f.uc.Reserve(context.Background(), &dto.ReserveInput{InventoryRecordID: rec.ID, RequestedQuantity: 16})
		assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	})

	t.Run("empty record rejects any reserve", func(t *testing.T) {
		f := newFixture(t, 0)
		rec := f.record(t, 0)

		_, err := f.uc.Reserve(context.Background(), &dto.ReserveInput{InventoryRecordID: rec.ID, RequestedQuantity: 1})
		assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	})
}

func TestReserveValidation(t *testing.T) {
	f := newFixture(t, 0)
	rec := f.record(t, 10)

	tests := []struct {
		name  string
		input *dto.ReserveInput
		field string
	}{
		{"zero quantity", &dto.ReserveInput{InventoryRecordID: rec.ID, RequestedQuantity: 0}, "RequestedQuantity"},
		{"negative quantity", &dto.ReserveInput{InventoryRecordID: rec.ID, RequestedQuantity: -5}, "RequestedQuantity"},
		{"missing record", &dto.ReserveInput{RequestedQuantity: 1}, "InventoryRecordID"},
		{"malformed record id", &dto.ReserveInput{InventoryRecordID: "bin-7", RequestedQuantity: 1}, "InventoryRecordID"},
		{"negative ttl", &dto.ReserveInput{InventoryRecordID: rec.ID, RequestedQuantity: 1, TTL: -time.Second}, "TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uc.Reserve(context.Background(), tt.input)
			require.ErrorIs(t, err, inventory.ErrValidation)

			var verr *inventory.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.Equal(t, int64(0), f.availability(t, rec.ID).Reserved)
}

func TestReserveUnknownRecord(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.uc.Reserve(context.Background(), &dto.ReserveInput{InventoryRecordID: uuid.NewString(), RequestedQuantity: 1})
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestConcurrentReserveNeverOversells(t *testing.T) {
	forEachStore(t, 0, func(t *testing.T, f *fixture) {
		rec := f.record(t, 100)

		const callers = 150
		var (
			wg           sync.WaitGroup
			succeeded    atomic.Int32
			insufficient atomic.Int32
			other        atomic.Int32
		)
		start := make(chan struct{})

		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := f.uc.Reserve(context.Background(), &dto.ReserveInput{
					InventoryRecordID: rec.ID,
					RequestedQuantity: 10,
				})
				switch {
				case err == nil:
					succeeded.Add(1)
				case errors.Is(err, inventory.ErrInsufficientStock):
					insufficient.Add(1)
				default:
					t.Logf("unexpected reserve error: %v", err)
					other.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(10), succeeded.Load())
		assert.Equal(t, int32(callers-10), insufficient.Load())
		assert.Zero(t, other.Load())

		a := f.availability(t, rec.ID)
		assert.Equal(t, int64(100), a.Reserved)
		assert.Equal(t, int64(0), a.Available)

		_, total, err := f.uc.ListReservations(context.Background(), &dto.ReservationFilters{
			InventoryRecordID: rec.ID,
			Status:            model.ReservationStatusActive,
		})
		require.NoError(t, err)
		assert.Equal(t, 10, total)
		f.assertConsistent(t, rec.ID)
	})
}

func TestReserveCancelRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	rec := f.record(t, 40)
	before := f.availability(t, rec.ID)

	res := f.reserve(t, rec.ID, 15)
	cancelled, err := f.uc.Cancel(ctx, &dto.CancelInput{ReservationID: res.ID, CancelledBy: "clerk-2"})
	require.NoError(t, err)

	assert.Equal(t, model.ReservationStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, "clerk-2", *cancelled.CancelledBy)
	require.NotNil(t, cancelled.CancelledAt)

	assert.Equal(t, *before, *f.availability(t, rec.ID))

	mvs, _, err := f.uc.ListMovements(ctx, &dto.MovementFilters{ReservationID: res.ID})
	require.NoError(t, err)
	assert.Empty(t, mvs, "cancel does not touch the movement log")
	f.assertConsistent(t, rec.ID)
}

func TestFulfillDeductsStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	rec := f.record(t, 50)

	f.reserve(t, rec.ID, 15)
	res := f.reserve(t, rec.ID, 5)
	require.Equal(t, int64(20), f.availability(t, rec.ID).Reserved)

	fulfilled, mv, err := f.uc.Fulfill(ctx, &dto.FulfillInput{ReservationID: res.ID, FulfilledBy: "picker-4"})
	require.NoError(t, err)

	assert.Equal(t, model.ReservationStatusFulfilled, fulfilled.Status)
	require.NotNil(t, fulfilled.FulfilledAt)

	a := f.availability(t, rec.ID)
	assert.Equal(t, int64(45), a.Total)
	assert.Equal(t, int64(15), a.Reserved)
	assert.Equal(t, int64(30), a.Available)

	require.NotNil(t, mv)
	assert.Equal(t, model.MovementReasonReservationFulfilled, mv.Reason)
	assert.Equal(t, int64(-5), mv.QuantityChange)
	assert.Equal(t, int64(50), mv.TotalBefore)
	assert.Equal(t, int64(45), mv.TotalAfter)
	assert.Equal(t, int64(20), mv.ReservedBefore)
	assert.Equal(t, int64(15), mv.ReservedAfter)
	require.NotNil(t, mv.ReservationID)
	assert.Equal(t, res.ID, *mv.ReservationID)

	mvs, total, err := f.uc.ListMovements(ctx, &dto.MovementFilters{ReservationID: res.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, mvs, 1)
	assert.Equal(t, mv.ID, mvs[0].ID)

	published := f.publisher.published()
	require.NotEmpty(t, published)
	assert.Equal(t, mv.ID, published[len(published)-1].ID)
	f.assertConsistent(t, rec.ID)
}

func TestNoDoubleTerminalTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("double cancel", func(t *testing.T) {
		f := newFixture(t, 0)
		rec := f.record(t, 10)
		res := f.reserve(t, rec.ID, 4)

		_, err := f.uc.Cancel(ctx, &dto.CancelInput{ReservationID: res.ID})
		require.NoError(t, err)
		_, err = f.uc.Cancel(ctx, &dto.CancelInput{ReservationID: res.ID})
		assert.ErrorIs(t, err, inventory.ErrInvalidStateTransition)

		assert.Equal(t, int64(0), f.availability(t, rec.ID).Reserved)
		f.assertConsistent(t, rec.ID)
	})

	t.Run("fulfill after cancel", func(t *testing.T) {
		f := newFixture(t, 0)
		rec := f.record(t, 10)
		res := f.reserve(t, rec.ID, 4)

		_, err := f.uc.Cancel(ctx, &dto.CancelInput{ReservationID: res.ID})
		require.NoError(t, err)
		_, _, err = f.uc.Fulfill(ctx, &dto.FulfillInput{ReservationID: res.ID})
		require.ErrorIs(t, err, inventory.ErrInvalidStateTransition)

		var stErr *inventory.StateTransitionError
		require.ErrorAs(t, err, &stErr)
		assert.Equal(t, model.ReservationStatusCancelled, stErr.From)
		assert.Equal(t, model.ReservationStatusFulfilled, stErr.To)

		a := f.availability(t, rec.ID)
		assert.Equal(t, int64(10), a.Total)
		assert.Equal(t, int64(0), a.Reserved)
	})

	t.Run("cancel after fulfill", func(t *testing.T) {
		f := newFixture(t, 0)
		rec := f.record(t, 10)
		res := f.reserve(t, rec.ID, 4)

		_, _, err := f.uc.Fulfill(ctx, &dto.FulfillInput{ReservationID: res.ID})
		require.NoError(t, err)
		_, err = f.uc.Cancel(ctx, &dto.CancelInput{ReservationID: res.ID})
		assert.ErrorIs(t, err, inventory.ErrInvalidStateTransition)

		a := f.availability(t, rec.ID)
		assert.Equal(t, int64(6), a.Total)
		assert.Equal(t, int64(0), a.Reserved)
	})

	t.Run("racing cancel and fulfill", func(t *testing.T) {
		f := newFixture(t, 0)
		rec := f.record(t, 10)
		res := f.reserve(t, rec.ID, 4)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = f.uc.Cancel(ctx, &dto.CancelInput{ReservationID: res.ID})
		}()
		go func() {
			defer wg.Done()
			_, _, errs[1] = f.uc.Fulfill(ctx, &dto.FulfillInput{ReservationID: res.ID})
		}()
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, inventory.ErrInvalidStateTransition)
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, int64(0), f.availability(t, rec.ID).Reserved)
		f.assertConsistent(t, rec.ID)
	})
}

func TestCancelUnknownReservation(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.uc.Cancel(context.Background(), &dto.CancelInput{ReservationID: uuid.NewString()})
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	_, err = f.uc.Cancel(context.Background(), &dto.CancelInput{ReservationID: "not-a-uuid"})
	assert.ErrorIs(t, err, inventory.ErrValidation)
}

func TestReserveIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	rec := f.record(t, 20)

	input := &dto.ReserveInput{InventoryRecordID: rec.ID, RequestedQuantity: 5, IdempotencyKey: "pick-task:42"}
	first, err := f.uc.Reserve(ctx, input)
	require.NoError(t, err)
	second, err := f.uc.Reserve(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(5), f.availability(t, rec.ID).Reserved)
}

func TestReserveIdempotencyKeyReusedForDifferentRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	rec := f.record(t, 20)
	other := f.record(t, 20)

	_, err := f.uc.Reserve(ctx, &dto.ReserveInput{InventoryRecordID: rec.ID, RequestedQuantity: 5, IdempotencyKey: "order-11"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input *dto.ReserveInput
	}{
		{name: "different quantity", input: &dto.ReserveInput{InventoryRecordID: rec.ID, RequestedQuantity: 6, IdempotencyKey: "order-11"}},
		{name: "different record", input: &dto.ReserveInput{InventoryRecordID: other.ID, RequestedQuantity: 5, IdempotencyKey: "order-11"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uc.Reserve(ctx, tt.input)
			var verr *inventory.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "idempotency_key", verr.Field)
		})
	}

	assert.Equal(t, int64(5), f.availability(t, rec.ID).Reserved)
	assert.Equal(t, int64(0), f.availability(t, other.ID).Reserved)
}

func TestReserveIdempotencyKeyReleasedOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	rec := f.record(t, 3)

	input := &dto.ReserveInput{InventoryRecordID: rec.ID, RequestedQuantity: 5, IdempotencyKey: "order-9"}
	_, err := f.uc.Reserve(ctx, input)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	_, _, err = f.uc.AdjustStock(ctx, &dto.AdjustStockInput{InventoryRecordID: rec.ID, QuantityChange: 10})
	require.NoError(t, err)

	res, err := f.uc.Reserve(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.RequestedQuantity)
}

func TestReserveIdempotencyKeyInFlight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	rec := f.record(t, 3)

	_, acquired, err := f.idem.Begin(ctx, "order-10")
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = f.uc.Reserve(ctx, &dto.ReserveInput{InventoryRecordID: rec.ID, RequestedQuantity: 1, IdempotencyKey: "order-10"})
	assert.ErrorIs(t, err, inventory.ErrConcurrentModification)
	assert.True(t, inventory.IsRetryable(err))
}

func TestReserveTTL(t *testing.T) {
	f := newFixture(t, 15*time.Minute)
	rec := f.record(t, 10)

	withDefault := f.reserve(t, rec.ID, 1)
	require.NotNil(t, withDefault.ExpiresAt)
	assert.Equal(t, f.clock.Now().Add(15*time.Minute), *withDefault.ExpiresAt)

	explicit, err := f.uc.Reserve(context.Background(), &dto.ReserveInput{
		InventoryRecordID: rec.ID,
		RequestedQuantity: 1,
		TTL:               time.Hour,
	})
	require.NoError(t, err)
	require.NotNil(t, explicit.ExpiresAt)
	assert.Equal(t, f.clock.Now().Add(time.Hour), *explicit.ExpiresAt)
}

func TestExpire(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10*time.Minute)
	rec := f.record(t, 10)
	res := f.reserve(t, rec.ID, 6)

	_, err := f.uc.Expire(ctx, res.ID)
	require.ErrorIs(t, err, inventory.ErrValidation, "ttl has not elapsed")

	f.clock.Advance(10 * time.Minute)
	expired, err := f.uc.Expire(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationStatusExpired, expired.Status)
	require.NotNil(t, expired.ExpiredAt)

	a := f.availability(t, rec.ID)
	assert.Equal(t, int64(10), a.Total)
	assert.Equal(t, int64(0), a.Reserved)

	_, _, err = f.uc.Fulfill(ctx, &dto.FulfillInput{ReservationID: res.ID})
	assert.ErrorIs(t, err, inventory.ErrInvalidStateTransition)
	f.assertConsistent(t, rec.ID)
}

func TestCreateRecordWritesReceipt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	rec := f.record(t, 12)

	mvs, total, err := f.uc.ListMovements(ctx, &dto.MovementFilters{InventoryRecordID: rec.ID})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, model.MovementReasonReceipt, mvs[0].Reason)
	assert.Equal(t, int64(12), mvs[0].QuantityChange)
	assert.Equal(t, int64(12), mvs[0].TotalAfter)
	assert.Nil(t, mvs[0].ReservationID)

	empty := f.record(t, 0)
	_, total, err = f.uc.ListMovements(ctx, &dto.MovementFilters{InventoryRecordID: empty.ID})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestAdjustStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	rec := f.record(t, 20)
	f.reserve(t, rec.ID, 12)

	updated, mv, err := f.uc.AdjustStock(ctx, &dto.AdjustStockInput{
		InventoryRecordID: rec.ID,
		QuantityChange:    -8,
		Reason:            "cycle count",
		AdjustedBy:        "auditor",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), updated.TotalQuantity)
	assert.Equal(t, int64(12), updated.ReservedQuantity)
	assert.Equal(t, model.MovementReasonAdjustment, mv.Reason)
	assert.Equal(t, int64(20), mv.TotalBefore)
	assert.Equal(t, int64(12), mv.TotalAfter)

	_, _, err = f.uc.AdjustStock(ctx, &dto.AdjustStockInput{InventoryRecordID: rec.ID, QuantityChange: -1})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock, "total may not drop below reserved")

	_, _, err = f.uc.AdjustStock(ctx, &dto.AdjustStockInput{InventoryRecordID: rec.ID, QuantityChange: 0})
	require.ErrorIs(t, err, inventory.ErrValidation)

	a := f.availability(t, rec.ID)
	assert.Equal(t, int64(12), a.Total)
	f.assertConsistent(t, rec.ID)
}

func TestAdjustStockRejectsOversizedChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	rec := f.record(t, 20)

	tests := []struct {
		name  string
		delta int64
	}{
		{name: "overflowing delta", delta: math.MaxInt64},
		{name: "delta above bound", delta: model.MaxQuantity + 1},
		{name: "delta below bound", delta: -model.MaxQuantity - 1},
		{name: "total above bound", delta: model.MaxQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.uc.AdjustStock(ctx, &dto.AdjustStockInput{InventoryRecordID: rec.ID, QuantityChange: tt.delta})
			var verr *inventory.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "QuantityChange", verr.Field)
			assert.NotErrorIs(t, err, inventory.ErrInsufficientStock)
		})
	}

	updated, _, err := f.uc.AdjustStock(ctx, &dto.AdjustStockInput{InventoryRecordID: rec.ID, QuantityChange: model.MaxQuantity - 20})
	require.NoError(t, err)
	assert.Equal(t, model.MaxQuantity, updated.TotalQuantity)
	f.assertConsistent(t, rec.ID)
}

func TestPublishFailureDoesNotUndoFulfill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	rec := f.record(t, 10)
	res := f.reserve(t, rec.ID, 2)

	f.publisher.err = errors.New("broker unavailable")
	_, mv, err := f.uc.Fulfill(ctx, &dto.FulfillInput{ReservationID: res.ID})
	require.NoError(t, err)
	require.NotNil(t, mv)

	assert.Equal(t, int64(8), f.availability(t, rec.ID).Total)
}

func TestListReservationsRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, 0)

	_, _, err := f.uc.ListReservations(context.Background(), &dto.ReservationFilters{Status: "on-hold"})
	assert.ErrorIs(t, err, inventory.ErrValidation)
}

func TestCheckConsistencyDetectsDrift(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	rec := f.record(t, 10)
	f.reserve(t, rec.ID, 3)

	err := f.repo.WithTx(ctx, func(tx inventory.Tx) error {
		r, err := tx.LockRecord(ctx, rec.ID)
		if err != nil {
			return err
		}
		r.ReservedQuantity = 5
		return tx.UpdateRecordQuantities(ctx, r)
	})
	require.NoError(t, err)

	report, err := f.uc.CheckConsistency(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	assert.Equal(t, int64(5), report.ReservedQuantity)
	assert.Equal(t, int64(3), report.ActiveReserved)
	assert.Equal(t, 1, report.ActiveCount)
}
