package resource

import (
	"time"

	"github.com/nsyszr/soilcontrol/pkg/model"
)

type MeasurementResource struct {
	ID            string    `json:"id"`
	DeviceID      string    `json:"deviceId"`
	MoistureLevel int       `json:"moistureLevel"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewMeasurementList keeps the order of m.
func NewMeasurementList(m []model.Measurement) []*MeasurementResource {
	out := make([]*MeasurementResource, 0, len(m))
	for _, elem := range m {
		out = append(out, &MeasurementResource{
			ID:            elem.ID,
			DeviceID:      elem.DeviceID,
			MoistureLevel: elem.MoistureLevel,
			Timestamp:     elem.Timestamp,
		})
	}
	return out
}
