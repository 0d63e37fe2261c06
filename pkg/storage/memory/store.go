package memory

import "github.com/nsyszr/soilcontrol/pkg/storage"

// Store contains all memory-based sub-stores for managing the persistent models
type store struct {
	devices      *deviceStore
	measurements *measurementStore
}

// NewStore creates a new memory-based Storage interface
func NewStore() storage.Interface {
	return &store{
		devices:      newDeviceStore(),
		measurements: newMeasurementStore(),
	}
}

// Devices returns a sub-store for managing the device model
func (s *store) Devices() storage.DeviceStore {
	return s.devices
}

// Measurements returns a sub-store for managing the measurement model
func (s *store) Measurements() storage.MeasurementStore {
	return s.measurements
}

func (s *store) Close() error {
	return nil
}
