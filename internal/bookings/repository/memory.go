package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	bookingserrors "bikerent/internal/bookings/errors"
	"bikerent/internal/interval"
	mongotx "bikerent/pkg/db/mongo"
	"bikerent/pkg/model"
)

// memoryBookingRepository keeps bookings in process. Insert checks for
// overlaps and stores under one write lock, which makes it atomic on its
// own; transactions run inline.
type memoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*model.Booking
	order    []string
	tx       mongotx.InlineTransactionManager
}

func NewMemoryBookingRepository() BookingRepository {
	return &memoryBookingRepository{
		bookings: make(map[string]*model.Booking),
	}
}

func clone(b *model.Booking) *model.Booking {
	c := *b
	if b.CancelledAt != nil {
		at := *b.CancelledAt
		c.CancelledAt = &at
	}
	return &c
}

func overlapsConfirmed(b *model.Booking, vehicleID, location string, w interval.Window) bool {
	return b.Status == model.StatusConfirmed &&
		b.VehicleID == vehicleID &&
		b.Location == location &&
		interval.Overlaps(interval.Window{Start: b.StartTime, End: b.EndTime}, w)
}

func (r *memoryBookingRepository) Insert(ctx context.Context, booking *model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bookings[booking.ID]; exists {
		return bookingserrors.ErrConflict
	}
	if booking.Status == model.StatusConfirmed {
		w := interval.Window{Start: booking.StartTime, End: booking.EndTime}
		for _, existing := range r.bookings {
			if overlapsConfirmed(existing, booking.VehicleID, booking.Location, w) {
				return bookingserrors.ErrConflict
			}
		}
	}

	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	r.bookings[booking.ID] = clone(booking)
	r.order = append(r.order, booking.ID)
	return nil
}

func (r *memoryBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return clone(b), nil
}

func (r *memoryBookingRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	matches, err := r.filter(ctx, func(b *model.Booking) bool { return b.UserID == userID })
	if err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].StartTime.After(matches[j].StartTime)
	})

	if offset >= int64(len(matches)) {
		return []*model.Booking{}, nil
	}
	matches = matches[offset:]
	if limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *memoryBookingRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	matches, err := r.filter(ctx, func(b *model.Booking) bool { return b.UserID == userID })
	return int64(len(matches)), err
}

func (r *memoryBookingRepository) FindOverlapping(ctx context.Context, vehicleID, location string, w interval.Window) ([]*model.Booking, error) {
	return r.filter(ctx, func(b *model.Booking) bool {
		return overlapsConfirmed(b, vehicleID, location, w)
	})
}

func (r *memoryBookingRepository) FindConfirmedInWindow(ctx context.Context, w interval.Window) ([]*model.Booking, error) {
	return r.filter(ctx, func(b *model.Booking) bool {
		return b.Status == model.StatusConfirmed &&
			interval.Overlaps(interval.Window{Start: b.StartTime, End: b.EndTime}, w)
	})
}

// filter returns copies in insertion order.
func (r *memoryBookingRepository) filter(ctx context.Context, keep func(*model.Booking) bool) ([]*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.Booking{}
	for _, id := range r.order {
		if b := r.bookings[id]; keep(b) {
			out = append(out, clone(b))
		}
	}
	return out, nil
}

func (r *memoryBookingRepository) UpdateStatus(ctx context.Context, booking *model.Booking, from model.BookingStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.bookings[booking.ID]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	if stored.Status != from {
		return bookingserrors.ErrConflict
	}

	updated := clone(stored)
	updated.Status = booking.Status
	updated.CancelledAt = booking.CancelledAt
	r.bookings[booking.ID] = clone(updated)
	return nil
}

func (r *memoryBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.tx.ExecuteTransaction(ctx, fn)
}

type memoryBookingLockRepository struct {
	mu    sync.Mutex
	locks map[string]*model.BookingLock
	now   func() time.Time
}

func NewMemoryBookingLockRepository() BookingLockRepository {
	return newMemoryBookingLockRepository(time.Now)
}

func newMemoryBookingLockRepository(now func() time.Time) *memoryBookingLockRepository {
	return &memoryBookingLockRepository{
		locks: make(map[string]*model.BookingLock),
		now:   now,
	}
}

func (r *memoryBookingLockRepository) Acquire(ctx context.Context, vehicleID, owner string, ttl time.Duration) (*model.BookingLock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	id := LockID(vehicleID)
	if held, ok := r.locks[id]; ok && held.ExpiresAt.After(now) {
		return nil, bookingserrors.ErrConflict
	}

	lock := &model.BookingLock{
		ID:        id,
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	r.locks[id] = lock
	copied := *lock
	return &copied, nil
}

func (r *memoryBookingLockRepository) Release(ctx context.Context, lock *model.BookingLock) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	held, ok := r.locks[lock.ID]
	if !ok || held.Owner != lock.Owner {
		return bookingserrors.ErrLockNotHeld
	}
	delete(r.locks, lock.ID)
	return nil
}
