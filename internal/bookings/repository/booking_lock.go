package repository

import (
	"context"
	"fmt"
	"time"

	bookingserrors "bikerent/internal/bookings/errors"
	"bikerent/pkg/config"
	mongotx "bikerent/pkg/db/mongo"
	"bikerent/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Booking_locks"

// BookingLockRepository provides advisory locks that serialize admissions
// for one vehicle across service instances.
type BookingLockRepository interface {
	// Acquire returns ErrConflict while another owner holds an unexpired
	// lock for the vehicle. Expired locks are taken over.
	Acquire(ctx context.Context, vehicleID, owner string, ttl time.Duration) (*model.BookingLock, error)
	// Release deletes the lock if it is still held by lock.Owner.
	Release(ctx context.Context, lock *model.BookingLock) error
}

// LockID is the advisory lock key for a vehicle.
func LockID(vehicleID string) string {
	return "vehicle:" + vehicleID
}

type mongoBookingLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoBookingLockRepository(cfg *config.Config) BookingLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingLockRepository{
		cfg:        cfg,
		collection: db.Collection(LockCollectionName),
		now:        time.Now,
	}
}

func (r *mongoBookingLockRepository) Acquire(ctx context.Context, vehicleID, owner string, ttl time.Duration) (*model.BookingLock, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := r.now().UTC()
	lock := &model.BookingLock{
		ID:        LockID(vehicleID),
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err == nil {
		return lock, nil
	}
	if !mongotx.IsDuplicateKey(err) {
		return nil, fmt.Errorf("failed to acquire booking lock: %w", err)
	}

	// The holder may have crashed; the TTL index only sweeps about once a minute.
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": lock.ID, "expires_at": bson.M{"$lte": now}})
	if err != nil {
		return nil, fmt.Errorf("failed to reclaim stale booking lock: %w", err)
	}
	if res.DeletedCount == 0 {
		return nil, bookingserrors.ErrConflict
	}

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongotx.IsDuplicateKey(err) {
			return nil, bookingserrors.ErrConflict
		}
		return nil, fmt.Errorf("failed to acquire booking lock: %w", err)
	}
	return lock, nil
}

func (r *mongoBookingLockRepository) Release(ctx context.Context, lock *model.BookingLock) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": lock.ID, "owner": lock.Owner})
	if err != nil {
		return fmt.Errorf("failed to release booking lock: %w", err)
	}
	if res.DeletedCount == 0 {
		return bookingserrors.ErrLockNotHeld
	}
	return nil
}
