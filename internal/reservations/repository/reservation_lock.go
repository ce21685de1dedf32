package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	reservationerrors "fleetrental/internal/reservations/errors"
	"fleetrental/pkg/config"
	"fleetrental/pkg/model"
)

const (
	LockCollectionName = "Reservation_locks"
)

// ReservationLockRepository provides store-level advisory locks that
// serialize admission checks per category. A TTL index on expires_at
// reclaims locks from crashed holders.
type ReservationLockRepository interface {
	Acquire(ctx context.Context, lock *model.ReservationLock) error
	Release(ctx context.Context, lockID string) error
}

type mongoReservationLockRepository struct {
	collection *mongo.Collection
}

func NewReservationLockRepository(cfg *config.Config) ReservationLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

// Acquire inserts the lock document; a duplicate key on _id means another
// request holds the lock.
func (r *mongoReservationLockRepository) Acquire(ctx context.Context, lock *model.ReservationLock) error {
	lock.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return reservationerrors.ErrLockHeld
		}
		return fmt.Errorf("failed to acquire admission lock: %w", err)
	}

	return nil
}

func (r *mongoReservationLockRepository) Release(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}
