package natsio

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subj string
	data []byte
}

type fakeConn struct {
	msgs []published
}

func (c *fakeConn) Publish(subj string, data []byte) error {
	c.msgs = append(c.msgs, published{subj: subj, data: data})
	return nil
}

func TestPublishDeviceStatus(t *testing.T) {
	nc := &fakeConn{}
	p := NewPublisher(nc, "soilcontrol.v1")

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, p.PublishDeviceStatus(&model.StatusEvent{
		DeviceID:     "d1",
		ConnectionID: "c1",
		Status:       model.DeviceStatusConnected,
		Timestamp:    ts,
	}))

	require.Len(t, nc.msgs, 1)
	assert.Equal(t, "soilcontrol.v1.events.devicestatus", nc.msgs[0].subj)
	assert.JSONEq(t, `{"source_type":"DEVICE","source_id":"d1","timestamp":"2024-01-01T00:00:00Z","details":{"status":"CONNECTED","connection_id":"c1"}}`, string(nc.msgs[0].data))
}

func TestPublishMeasurement(t *testing.T) {
	nc := &fakeConn{}
	p := NewPublisher(nc, "soilcontrol.v1")

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, p.PublishMeasurement(&model.Measurement{
		ID: "m1", DeviceID: "d1", MoistureLevel: 42, Timestamp: ts, CreatedAt: ts,
	}))

	require.Len(t, nc.msgs, 1)
	assert.Equal(t, "soilcontrol.v1.events.measurement", nc.msgs[0].subj)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(nc.msgs[0].data, &got))
	details := got["details"].(map[string]interface{})
	assert.Equal(t, float64(42), details["moisture_level"])
	assert.Equal(t, "m1", details["id"])
}
