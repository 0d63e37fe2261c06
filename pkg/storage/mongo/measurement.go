package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type measurementStore struct {
	coll *mongo.Collection
}

type bsonMeasurement struct {
	ID            string    `bson:"_id"`
	DeviceID      string    `bson:"device_id"`
	MoistureLevel int       `bson:"moisture_level"`
	Timestamp     time.Time `bson:"timestamp"`
	CreatedAt     time.Time `bson:"created_at"`
}

func (s *measurementStore) Create(ctx context.Context, m *model.Measurement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := s.coll.InsertOne(ctx, &bsonMeasurement{
		ID:            m.ID,
		DeviceID:      m.DeviceID,
		MoistureLevel: m.MoistureLevel,
		Timestamp:     m.Timestamp,
		CreatedAt:     m.CreatedAt,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create measurement")
	}
	return nil
}

func (s *measurementStore) FindLatestByDeviceID(ctx context.Context, deviceID string, limit int) ([]model.Measurement, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.coll.Find(ctx, bson.M{"device_id": deviceID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch measurements")
	}
	defer cur.Close(ctx)

	rows := make([]bsonMeasurement, 0)
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, "failed to decode measurements")
	}

	models := make([]model.Measurement, 0, len(rows))
	for _, d := range rows {
		models = append(models, model.Measurement{
			ID:            d.ID,
			DeviceID:      d.DeviceID,
			MoistureLevel: d.MoistureLevel,
			Timestamp:     d.Timestamp.UTC(),
			CreatedAt:     d.CreatedAt.UTC(),
		})
	}
	return models, nil
}
