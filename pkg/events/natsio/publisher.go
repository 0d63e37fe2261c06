package natsio

import (
	"encoding/json"

	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/message"
	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/pkg/errors"
)

// Conn is the part of *nats.Conn used for publishing.
type Conn interface {
	Publish(subj string, data []byte) error
}

// Publisher publishes events to NATS subjects below prefix.
type Publisher struct {
	nc     Conn
	prefix string
}

func NewPublisher(nc Conn, prefix string) *Publisher {
	return &Publisher{
		nc:     nc,
		prefix: prefix,
	}
}

// DeviceStatusSubject returns the subject of device status events.
func DeviceStatusSubject(prefix string) string {
	return prefix + ".events.devicestatus"
}

// MeasurementSubject returns the subject of measurement events.
func MeasurementSubject(prefix string) string {
	return prefix + ".events.measurement"
}

func (p *Publisher) PublishDeviceStatus(ev *model.StatusEvent) error {
	return p.publish(DeviceStatusSubject(p.prefix), &message.EventMessage{
		SourceType: message.SourceTypeDevice,
		SourceID:   ev.DeviceID,
		Timestamp:  ev.Timestamp,
		Details: &message.DeviceStatusDetails{
			Status:       string(ev.Status),
			ConnectionID: ev.ConnectionID,
		},
	})
}

func (p *Publisher) PublishMeasurement(m *model.Measurement) error {
	return p.publish(MeasurementSubject(p.prefix), &message.EventMessage{
		SourceType: message.SourceTypeDevice,
		SourceID:   m.DeviceID,
		Timestamp:  m.CreatedAt,
		Details: &message.MeasurementDetails{
			ID:            m.ID,
			MoistureLevel: m.MoistureLevel,
			Timestamp:     m.Timestamp,
		},
	})
}

func (p *Publisher) publish(subj string, msg *message.EventMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return errors.Wrapf(p.nc.Publish(subj, data), "failed to publish to '%s'", subj)
}
