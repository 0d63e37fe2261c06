package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/nsyszr/soilcontrol/pkg/storage"
)

type deviceStore struct {
	store map[string]model.Device
	sync.RWMutex
}

func newDeviceStore() *deviceStore {
	return &deviceStore{
		store: make(map[string]model.Device),
	}
}

func (s *deviceStore) FindByID(_ context.Context, id string) (*model.Device, error) {
	s.RLock()
	defer s.RUnlock()
	if m, ok := s.store[id]; ok {
		return copyDevice(m), nil
	}

	return nil, storage.ErrNotFound
}

func (s *deviceStore) FetchAllByOwner(_ context.Context, ownerID string) ([]model.Device, error) {
	s.RLock()
	defer s.RUnlock()

	models := make([]model.Device, 0)
	for _, m := range s.store {
		if m.OwnerID != nil && *m.OwnerID == ownerID {
			models = append(models, *copyDevice(m))
		}
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].ID < models[j].ID
	})

	return models, nil
}

func (s *deviceStore) Create(_ context.Context, m *model.Device) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.store[m.ID]; ok {
		return storage.ErrAlreadyExists
	}

	now := time.Now().Round(time.Second).UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	s.store[m.ID] = *copyDevice(*m)

	return nil
}

func (s *deviceStore) Update(_ context.Context, id string, u model.DeviceUpdate) (*model.Device, error) {
	s.Lock()
	defer s.Unlock()

	m, ok := s.store[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	u.Apply(&m)
	m.UpdatedAt = time.Now().Round(time.Second).UTC()
	s.store[id] = m

	return copyDevice(m), nil
}

// copyDevice detaches the owner pointer from the stored value.
func copyDevice(m model.Device) *model.Device {
	if m.OwnerID != nil {
		owner := *m.OwnerID
		m.OwnerID = &owner
	}
	return &m
}
