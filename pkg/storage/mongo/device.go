package mongo

import (
	"context"
	"time"

	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/nsyszr/soilcontrol/pkg/storage"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type deviceStore struct {
	coll *mongo.Collection
}

type bsonDevice struct {
	ID              string    `bson:"_id"`
	Name            string    `bson:"name"`
	AuthKey         string    `bson:"auth_key"`
	Claimed         bool      `bson:"claimed"`
	OwnerID         *string   `bson:"owner_id,omitempty"`
	ThresholdRed    int       `bson:"threshold_red"`
	ThresholdYellow int       `bson:"threshold_yellow"`
	ThresholdGreen  int       `bson:"threshold_green"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func newBSONDevice(m *model.Device) *bsonDevice {
	return &bsonDevice{
		ID:              m.ID,
		Name:            m.Name,
		AuthKey:         m.AuthKey,
		Claimed:         m.Claimed,
		OwnerID:         m.OwnerID,
		ThresholdRed:    m.ThresholdRed,
		ThresholdYellow: m.ThresholdYellow,
		ThresholdGreen:  m.ThresholdGreen,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func (d *bsonDevice) Model() *model.Device {
	return &model.Device{
		ID:              d.ID,
		Name:            d.Name,
		AuthKey:         d.AuthKey,
		Claimed:         d.Claimed,
		OwnerID:         d.OwnerID,
		ThresholdRed:    d.ThresholdRed,
		ThresholdYellow: d.ThresholdYellow,
		ThresholdGreen:  d.ThresholdGreen,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

// updateDocument renders the supplied fields of u as a $set document.
func updateDocument(u model.DeviceUpdate, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Claimed != nil {
		set["claimed"] = *u.Claimed
	}
	if u.OwnerID != nil {
		set["owner_id"] = *u.OwnerID
	}
	if u.ThresholdRed != nil {
		set["threshold_red"] = *u.ThresholdRed
	}
	if u.ThresholdYellow != nil {
		set["threshold_yellow"] = *u.ThresholdYellow
	}
	if u.ThresholdGreen != nil {
		set["threshold_green"] = *u.ThresholdGreen
	}
	return bson.M{"$set": set}
}

func (s *deviceStore) FindByID(ctx context.Context, id string) (*model.Device, error) {
	d := bsonDevice{}
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to find device")
	}
	return d.Model(), nil
}

func (s *deviceStore) FetchAllByOwner(ctx context.Context, ownerID string) ([]model.Device, error) {
	cur, err := s.coll.Find(ctx, bson.M{"owner_id": ownerID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch devices")
	}
	defer cur.Close(ctx)

	rows := make([]bsonDevice, 0)
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, "failed to decode devices")
	}

	models := make([]model.Device, 0, len(rows))
	for i := range rows {
		models = append(models, *rows[i].Model())
	}
	return models, nil
}

func (s *deviceStore) Create(ctx context.Context, m *model.Device) error {
	now := time.Now().Round(time.Second).UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	if _, err := s.coll.InsertOne(ctx, newBSONDevice(m)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrAlreadyExists
		}
		return errors.Wrap(err, "failed to create device")
	}
	return nil
}

func (s *deviceStore) Update(ctx context.Context, id string, u model.DeviceUpdate) (*model.Device, error) {
	d := bsonDevice{}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, updateDocument(u, time.Now().Round(time.Second).UTC()), opts).Decode(&d)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to update device")
	}
	return d.Model(), nil
}
