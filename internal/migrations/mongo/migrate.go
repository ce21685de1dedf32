package mongo

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fleetrental/internal/migrations/mongo/validators"
	"fleetrental/pkg/model"
)

const (
	EnvCapacitySedan = "FLEET_CAPACITY_SEDAN"
	EnvCapacitySUV   = "FLEET_CAPACITY_SUV"
	EnvCapacityVan   = "FLEET_CAPACITY_VAN"
)

var (
	// The compound index serves the admission-control overlap count; the
	// user index serves the per-user listing.
	ReservationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "car_type", Value: 1},
			{Key: "status", Value: 1},
			{Key: "start_at", Value: 1},
			{Key: "end_at", Value: 1},
		}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	}

	CapacitiesIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "car_type", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	// The TTL index reclaims admission locks left behind by crashed
	// holders. ExpireAfterSeconds of 0 expires at the expires_at value.
	ReservationLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
)

func RunMigration(ctx context.Context, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	fmt.Printf("🚀 Running fleet-rental Mongo migrations on database: %s\n", dbName)

	collections := map[string]struct {
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		"Reservations": {
			Indexes:   ReservationsIndexes,
			Validator: validators.ReservationValidator,
		},
		"Capacities": {
			Indexes:   CapacitiesIndexes,
			Validator: validators.CapacityValidator,
		},
		"Reservation_locks": {
			Indexes:   ReservationLocksIndexes,
			Validator: validators.ReservationLockValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	if err := seedCapacities(ctx, db); err != nil {
		return fmt.Errorf("failed to seed capacities: %w", err)
	}

	fmt.Println("✅ All migrations applied successfully.")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		fmt.Printf("🆕 Creating collection: %s\n", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
	} else {
		fmt.Printf("ℹ️ Collection %s already exists — updating validator if needed\n", name)
		command := bson.D{
			{Key: "collMod", Value: name},
			{Key: "validator", Value: validator},
		}
		if err := db.RunCommand(ctx, command).Err(); err != nil {
			fmt.Printf("⚠️ Warning: failed updating validator for %s: %v\n", name, err)
		}
	}

	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	coll := db.Collection(name)
	_, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	fmt.Printf("📚 Ensured indexes for %s\n", name)
	return nil
}

// seedCapacities upserts the configured fleet sizes. $setOnInsert keeps
// reruns from clobbering quantities changed after the first seeding; a
// category without an env value stays unseeded and reads as capacity 0.
func seedCapacities(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection("Capacities")

	seeds := map[model.CarType]string{
		model.Sedan: EnvCapacitySedan,
		model.SUV:   EnvCapacitySUV,
		model.Van:   EnvCapacityVan,
	}

	for carType, envKey := range seeds {
		raw := os.Getenv(envKey)
		if raw == "" {
			continue
		}
		quantity, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || quantity < 0 {
			return fmt.Errorf("invalid %s value: %q", envKey, raw)
		}

		filter := bson.M{"car_type": carType}
		update := bson.M{"$setOnInsert": bson.M{
			"car_type": carType,
			"quantity": quantity,
		}}
		result, err := coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("failed seeding capacity for %s: %w", carType, err)
		}
		if result.UpsertedCount > 0 {
			fmt.Printf("🌱 Seeded capacity for %s: %d\n", carType, quantity)
		}
	}

	return nil
}
