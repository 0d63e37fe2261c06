package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nsyszr/soilcontrol/pkg/model"
)

type measurementStore struct {
	store map[string][]model.Measurement
	sync.RWMutex
}

func newMeasurementStore() *measurementStore {
	return &measurementStore{
		store: make(map[string][]model.Measurement),
	}
}

func (s *measurementStore) Create(_ context.Context, m *model.Measurement) error {
	s.Lock()
	defer s.Unlock()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	s.store[m.DeviceID] = append(s.store[m.DeviceID], *m)

	return nil
}

func (s *measurementStore) FindLatestByDeviceID(_ context.Context, deviceID string, limit int) ([]model.Measurement, error) {
	s.RLock()
	rows := make([]model.Measurement, len(s.store[deviceID]))
	copy(rows, s.store[deviceID])
	s.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.After(rows[j].Timestamp)
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	return rows, nil
}
