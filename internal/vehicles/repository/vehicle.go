package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	vehicleserrors "bikerent/internal/vehicles/errors"
	"bikerent/pkg/config"
	mongotx "bikerent/pkg/db/mongo"
	"bikerent/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Vehicles"
)

// VehicleRepository is the read side of the fleet catalog plus the insert
// used by seeding. List returns vehicles in catalog order: by number.
type VehicleRepository interface {
	List(ctx context.Context) ([]*model.Vehicle, error)
	FindByID(ctx context.Context, id string) (*model.Vehicle, error)
	FindByNumber(ctx context.Context, number string) (*model.Vehicle, error)
	Insert(ctx context.Context, v *model.Vehicle) error
	Count(ctx context.Context) (int64, error)
}

type mongoVehicleRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoVehicleRepository(cfg *config.Config) VehicleRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoVehicleRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoVehicleRepository) List(ctx context.Context) ([]*model.Vehicle, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "number", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer cursor.Close(ctx)

	vehicles := []*model.Vehicle{}
	if err = cursor.All(ctx, &vehicles); err != nil {
		return nil, fmt.Errorf("failed to decode vehicles: %w", err)
	}
	return vehicles, nil
}

func (r *mongoVehicleRepository) FindByID(ctx context.Context, id string) (*model.Vehicle, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoVehicleRepository) FindByNumber(ctx context.Context, number string) (*model.Vehicle, error) {
	return r.findOne(ctx, bson.M{"number": number})
}

func (r *mongoVehicleRepository) findOne(ctx context.Context, filter bson.M) (*model.Vehicle, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var v model.Vehicle
	if err := r.collection.FindOne(ctx, filter).Decode(&v); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, vehicleserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find vehicle: %w", err)
	}
	return &v, nil
}

func (r *mongoVehicleRepository) Insert(ctx context.Context, v *model.Vehicle) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if _, err := r.collection.InsertOne(ctx, v); err != nil {
		if mongotx.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", vehicleserrors.ErrDuplicateNumber, v.Number)
		}
		return fmt.Errorf("failed to insert vehicle: %w", err)
	}
	return nil
}

func (r *mongoVehicleRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count vehicles: %w", err)
	}
	return count, nil
}
