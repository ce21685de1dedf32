package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"fleetrental/pkg/config"
	"fleetrental/pkg/model"
)

const (
	CapacityCollectionName = "Capacities"
)

// CapacityRepository is the read-only view of the configured fleet sizes.
type CapacityRepository interface {
	// QuantityOf returns the configured fleet size for the category.
	// An unconfigured category has capacity zero, never unlimited.
	QuantityOf(ctx context.Context, carType model.CarType) (int64, error)
}

type mongoCapacityRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCapacityRepository(cfg *config.Config) CapacityRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCapacityRepository{
		cfg:        cfg,
		collection: db.Collection(CapacityCollectionName),
	}
}

func (r *mongoCapacityRepository) QuantityOf(ctx context.Context, carType model.CarType) (int64, error) {
	var capacity model.Capacity
	err := r.collection.FindOne(ctx, bson.M{"car_type": carType}).Decode(&capacity)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to look up capacity: %w", err)
	}
	return capacity.Quantity, nil
}
