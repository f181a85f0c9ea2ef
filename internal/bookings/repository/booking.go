package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "bikerent/internal/bookings/errors"
	"bikerent/internal/interval"
	"bikerent/pkg/config"
	mongotx "bikerent/pkg/db/mongo"
	"bikerent/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type BookingRepository interface {
	// Insert stores a booking. A confirmed booking that overlaps another
	// confirmed booking for the same vehicle and location is refused with
	// ErrConflict.
	Insert(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	// FindOverlapping returns the confirmed bookings for the vehicle at the
	// location whose window overlaps w.
	FindOverlapping(ctx context.Context, vehicleID, location string, w interval.Window) ([]*model.Booking, error)
	// FindConfirmedInWindow returns every confirmed booking overlapping w,
	// across the whole fleet.
	FindConfirmedInWindow(ctx context.Context, w interval.Window) ([]*model.Booking, error)
	// UpdateStatus persists booking.Status and CancelledAt if the stored
	// status still equals from; otherwise it returns ErrConflict.
	UpdateStatus(ctx context.Context, booking *model.Booking, from model.BookingStatus) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func overlapFilter(w interval.Window) bson.M {
	return bson.M{
		"status":     model.StatusConfirmed,
		"start_time": bson.M{"$lt": w.End},
		"end_time":   bson.M{"$gt": w.Start},
	}
}

func (r *mongoBookingRepository) Insert(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if booking.Status == model.StatusConfirmed {
		filter := overlapFilter(interval.Window{Start: booking.StartTime, End: booking.EndTime})
		filter["vehicle_id"] = booking.VehicleID
		filter["location"] = booking.Location

		n, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("failed to re-check overlapping bookings: %w", err)
		}
		if n > 0 {
			return bookingserrors.ErrConflict
		}
	}

	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		if mongotx.IsDuplicateKey(err) {
			return bookingserrors.ErrConflict
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	return r.find(ctx, bson.M{"user_id": userID}, opts)
}

func (r *mongoBookingRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) FindOverlapping(ctx context.Context, vehicleID, location string, w interval.Window) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := overlapFilter(w)
	filter["vehicle_id"] = vehicleID
	filter["location"] = location

	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}}))
}

func (r *mongoBookingRepository) FindConfirmedInWindow(ctx context.Context, w interval.Window) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.find(ctx, overlapFilter(w), options.Find())
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Booking, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, booking *model.Booking, from model.BookingStatus) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": booking.ID, "status": from}
	update := bson.M{
		"$set": bson.M{
			"status":       booking.Status,
			"cancelled_at": booking.CancelledAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, booking.ID); err != nil {
			return err
		}
		return bookingserrors.ErrConflict
	}
	return nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
