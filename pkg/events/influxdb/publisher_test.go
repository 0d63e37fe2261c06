package influxdb

import (
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	points []*write.Point
}

func (w *fakeWriter) WritePoint(point *write.Point) {
	w.points = append(w.points, point)
}

func TestPublishMeasurementWritesPoint(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisher(w)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, p.PublishMeasurement(&model.Measurement{DeviceID: "d1", MoistureLevel: 55, Timestamp: ts}))

	require.Len(t, w.points, 1)
	pt := w.points[0]
	assert.Equal(t, "soil_moisture", pt.Name())
	assert.Equal(t, ts, pt.Time())
	require.Len(t, pt.TagList(), 1)
	assert.Equal(t, "device_id", pt.TagList()[0].Key)
	assert.Equal(t, "d1", pt.TagList()[0].Value)
	require.Len(t, pt.FieldList(), 1)
	assert.Equal(t, "moisture_level", pt.FieldList()[0].Key)
}

func TestPublishDeviceStatusWritesPoint(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisher(w)

	require.NoError(t, p.PublishDeviceStatus(&model.StatusEvent{DeviceID: "d1", Status: model.DeviceStatusConnected, Timestamp: time.Now()}))

	require.Len(t, w.points, 1)
	assert.Equal(t, "device_status", w.points[0].Name())
}
