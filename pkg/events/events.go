// Package events fans device status changes and measurements out to the
// configured message buses and time-series stores.
package events

import (
	"github.com/nsyszr/soilcontrol/pkg/model"
)

// Publisher is implemented by every event sink.
type Publisher interface {
	PublishDeviceStatus(ev *model.StatusEvent) error
	PublishMeasurement(m *model.Measurement) error
}

// Multi publishes to every publisher and returns the first error.
type Multi []Publisher

func (m Multi) PublishDeviceStatus(ev *model.StatusEvent) error {
	var first error
	for _, p := range m {
		if err := p.PublishDeviceStatus(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) PublishMeasurement(ms *model.Measurement) error {
	var first error
	for _, p := range m {
		if err := p.PublishMeasurement(ms); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Nop discards all events.
type Nop struct{}

func (Nop) PublishDeviceStatus(*model.StatusEvent) error { return nil }

func (Nop) PublishMeasurement(*model.Measurement) error { return nil }
