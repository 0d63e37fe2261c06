package sqlstore

import (
	"github.com/jmoiron/sqlx"
	"github.com/nsyszr/soilcontrol/pkg/storage"
)

// store contains all SQL based sub-stores for managing the models. Queries
// are written with bindvars of type '?' and rebound to the driver's dialect,
// so the same store serves PostgreSQL and SQLite.
type store struct {
	db           *sqlx.DB
	devices      *deviceStore
	measurements *measurementStore
}

// NewStore creates a new SQL based Storage interface
func NewStore(db *sqlx.DB) storage.Interface {
	return &store{
		db:           db,
		devices:      newDeviceStore(db),
		measurements: newMeasurementStore(db),
	}
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
	return s.db.Close()
}
