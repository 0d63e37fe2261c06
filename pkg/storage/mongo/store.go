package mongo

import (
	"context"
	"time"

	"github.com/nsyszr/soilcontrol/pkg/storage"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	devicesCollection      = "devices"
	measurementsCollection = "measurements"

	connectTimeout = 10 * time.Second
)

// store contains all MongoDB based sub-stores for managing the models
type store struct {
	client       *mongo.Client
	devices      *deviceStore
	measurements *measurementStore
}

// Connect opens a MongoDB client, ensures the indexes and returns the
// Storage interface backed by the given database.
func Connect(ctx context.Context, uri, database string) (storage.Interface, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "failed to ping mongodb")
	}

	db := client.Database(database)
	if _, err := db.Collection(measurementsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "device_id", Value: 1}, {Key: "timestamp", Value: -1}},
	}); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "failed to create measurement index")
	}
	if _, err := db.Collection(devicesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}},
	}); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "failed to create device index")
	}

	return &store{
		client:       client,
		devices:      &deviceStore{coll: db.Collection(devicesCollection)},
		measurements: &measurementStore{coll: db.Collection(measurementsCollection)},
	}, nil
}

// Devices returns a sub-store for managing the Device model
func (s *store) Devices() storage.DeviceStore {
	return s.devices
}

// Measurements returns a sub-store for managing the Measurement model
func (s *store) Measurements() storage.MeasurementStore {
	return s.measurements
}

func (s *store) Close() error {
	return s.client.Disconnect(context.Background())
}
