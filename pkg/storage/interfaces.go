package storage

import (
	"context"

	"github.com/nsyszr/soilcontrol/pkg/model"
)

// Interface is implemented by the storage
type Interface interface {
	Devices() DeviceStore
	Measurements() MeasurementStore
	Close() error
}

// DeviceStore is responsible for managing the Device model
type DeviceStore interface {
	FindByID(ctx context.Context, id string) (*model.Device, error)
	FetchAllByOwner(ctx context.Context, ownerID string) ([]model.Device, error)
	Create(ctx context.Context, m *model.Device) error
	Update(ctx context.Context, id string, u model.DeviceUpdate) (*model.Device, error)
}

// MeasurementStore is responsible for managing the Measurement model. It is
// append-only.
type MeasurementStore interface {
	Create(ctx context.Context, m *model.Measurement) error
	// FindLatestByDeviceID returns the newest measurements first. A limit
	// of zero or less returns all of them.
	FindLatestByDeviceID(ctx context.Context, deviceID string, limit int) ([]model.Measurement, error)
}
