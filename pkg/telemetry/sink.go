// Package telemetry persists device measurements and fans them out.
package telemetry

import (
	"context"
	"time"

	"github.com/nsyszr/soilcontrol/pkg/events"
	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/nsyszr/soilcontrol/pkg/storage"
	log "github.com/sirupsen/logrus"
)

type telemetryError string

// ErrInvalidMoistureLevel is returned for levels outside of [0,100].
const ErrInvalidMoistureLevel = telemetryError("moisture level out of range")

func (e telemetryError) Error() string {
	return string(e)
}

// Sink validates and appends measurements. A successfully stored
// measurement is published best-effort; publish failures are only logged.
type Sink struct {
	store     storage.MeasurementStore
	publisher events.Publisher
	now       func() time.Time
}

func NewSink(store storage.MeasurementStore, publisher events.Publisher) *Sink {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Sink{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// Record stores one measurement. A zero timestamp is replaced with the
// receipt time. Store failures are returned without retry.
func (s *Sink) Record(ctx context.Context, deviceID string, moistureLevel int, timestamp time.Time) (*model.Measurement, error) {
	if moistureLevel < 0 || moistureLevel > 100 {
		return nil, ErrInvalidMoistureLevel
	}

	now := s.now().UTC()
	if timestamp.IsZero() {
		timestamp = now
	}

	m := &model.Measurement{
		DeviceID:      deviceID,
		MoistureLevel: moistureLevel,
		Timestamp:     timestamp.UTC(),
		CreatedAt:     now,
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, err
	}

	if err := s.publisher.PublishMeasurement(m); err != nil {
		log.WithField("device_id", deviceID).Warnf("telemetry could not publish measurement: %v", err)
	}

	return m, nil
}
