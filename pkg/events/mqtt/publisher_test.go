package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

// stalledToken never completes, like a publish to an unreachable broker.
type stalledToken struct{}

func (stalledToken) Wait() bool                     { return false }
func (stalledToken) WaitTimeout(time.Duration) bool { return false }
func (stalledToken) Done() <-chan struct{}          { return make(chan struct{}) }
func (stalledToken) Error() error                   { return nil }

type stalledClient struct{}

func (stalledClient) Publish(string, byte, bool, interface{}) pahomqtt.Token {
	return stalledToken{}
}

type publishCall struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, publishCall{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return &fakeToken{err: c.err}
}

func TestPublishDeviceStatusIsRetained(t *testing.T) {
	c := &fakeClient{}
	p := NewPublisher(c, "soilcontrol")

	require.NoError(t, p.PublishDeviceStatus(&model.StatusEvent{DeviceID: "d1", Status: model.DeviceStatusDisconnected}))

	require.Len(t, c.calls, 1)
	assert.Equal(t, "soilcontrol/d1/status", c.calls[0].topic)
	assert.True(t, c.calls[0].retained)
	assert.Equal(t, byte(1), c.calls[0].qos)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(c.calls[0].payload, &got))
	assert.Equal(t, "DISCONNECTED", got["status"])
}

func TestPublishMeasurement(t *testing.T) {
	c := &fakeClient{}
	p := NewPublisher(c, "soilcontrol")

	require.NoError(t, p.PublishMeasurement(&model.Measurement{ID: "m1", DeviceID: "d1", MoistureLevel: 33}))

	require.Len(t, c.calls, 1)
	assert.Equal(t, "soilcontrol/d1/measurement", c.calls[0].topic)
	assert.False(t, c.calls[0].retained)
}

func TestPublishErrorIsReported(t *testing.T) {
	c := &fakeClient{err: errors.New("not connected")}
	p := NewPublisher(c, "soilcontrol")
	errCh := make(chan error, 1)
	p.onError = func(topic string, err error) {
		assert.Equal(t, "soilcontrol/d1/measurement", topic)
		errCh <- err
	}

	require.NoError(t, p.PublishMeasurement(&model.Measurement{DeviceID: "d1"}))

	select {
	case err := <-errCh:
		assert.Contains(t, err.Error(), "not connected")
	case <-time.After(time.Second):
		t.Fatal("publish error was not reported")
	}
}

func TestPublishDoesNotWaitForBroker(t *testing.T) {
	p := NewPublisher(stalledClient{}, "soilcontrol")
	p.onError = func(string, error) {}

	start := time.Now()
	require.NoError(t, p.PublishDeviceStatus(&model.StatusEvent{DeviceID: "d1", Status: model.DeviceStatusConnected}))
	require.NoError(t, p.PublishMeasurement(&model.Measurement{DeviceID: "d1", MoistureLevel: 40}))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
