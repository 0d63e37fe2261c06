package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/nsyszr/soilcontrol/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Create(context.Context, *model.Measurement) error {
	return errors.New("disk full")
}

func (failingStore) FindLatestByDeviceID(context.Context, string, int) ([]model.Measurement, error) {
	return nil, nil
}

type recordingPublisher struct {
	measurements []*model.Measurement
	err          error
}

func (p *recordingPublisher) PublishDeviceStatus(*model.StatusEvent) error { return nil }

func (p *recordingPublisher) PublishMeasurement(m *model.Measurement) error {
	p.measurements = append(p.measurements, m)
	return p.err
}

func TestRecordStoresAndPublishes(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	pub := &recordingPublisher{err: errors.New("nats down")}
	s := NewSink(store.Measurements(), pub)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	m, err := s.Record(ctx, "d1", 42, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, now, m.Timestamp)
	assert.NotEmpty(t, m.ID)
	require.Len(t, pub.measurements, 1)

	explicit := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	m, err = s.Record(ctx, "d1", 43, explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, m.Timestamp)

	rows, err := store.Measurements().FindLatestByDeviceID(ctx, "d1", 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRecordRejectsOutOfRange(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	s := NewSink(store.Measurements(), nil)

	for _, level := range []int{-1, 101} {
		_, err := s.Record(ctx, "d1", level, time.Time{})
		assert.Equal(t, ErrInvalidMoistureLevel, err)
	}
	for _, level := range []int{0, 100} {
		_, err := s.Record(ctx, "d1", level, time.Time{})
		assert.NoError(t, err)
	}
}

func TestRecordReturnsStoreError(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewSink(failingStore{}, pub)

	_, err := s.Record(context.Background(), "d1", 10, time.Time{})
	assert.EqualError(t, err, "disk full")
	assert.Empty(t, pub.measurements)
}
