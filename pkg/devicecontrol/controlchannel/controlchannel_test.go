package controlchannel

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/controlchannel/websocket"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/registry"
	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/nsyszr/soilcontrol/pkg/signature"
	"github.com/nsyszr/soilcontrol/pkg/storage"
	"github.com/nsyszr/soilcontrol/pkg/storage/memory"
	"github.com/nsyszr/soilcontrol/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDeviceID = "d1"
	testAuthKey  = "a1b2c3d4e5f6"
	testTS       = "2024-01-01T00:00:00.000Z"
)

type statusRecorder struct {
	sync.Mutex
	statuses []model.DeviceStatus
}

func (r *statusRecorder) PublishDeviceStatus(ev *model.StatusEvent) error {
	r.Lock()
	defer r.Unlock()
	r.statuses = append(r.statuses, ev.Status)
	return nil
}

func (r *statusRecorder) PublishMeasurement(*model.Measurement) error {
	return nil
}

func (r *statusRecorder) Statuses() []model.DeviceStatus {
	r.Lock()
	defer r.Unlock()
	return append([]model.DeviceStatus(nil), r.statuses...)
}

type fixture struct {
	store     storage.Interface
	reg       *registry.Registry
	codec     *signature.Codec
	publisher *statusRecorder
	ctrl      *Controller
}

func newFixture(t *testing.T, claimed bool) *fixture {
	t.Helper()

	store := memory.NewStore()
	d := &model.Device{
		ID:              testDeviceID,
		Name:            "Device d1",
		AuthKey:         testAuthKey,
		ThresholdRed:    15,
		ThresholdYellow: 40,
		ThresholdGreen:  70,
	}
	if claimed {
		owner := "u1"
		d.Claimed = true
		d.OwnerID = &owner
	}
	require.NoError(t, store.Devices().Create(context.Background(), d))

	f := &fixture{
		store:     store,
		reg:       registry.New(),
		codec:     signature.NewCodec(signature.SchemeMD5, 0),
		publisher: &statusRecorder{},
	}
	f.ctrl = NewController(store, f.reg, f.codec, telemetry.NewSink(store.Measurements(), nil),
		f.publisher, Options{AuthTimeout: time.Minute})
	return f
}

func (f *fixture) newChannel(t *testing.T) (*ControlChannel, chan *websocket.OutboxMessage) {
	t.Helper()
	outbox := make(chan *websocket.OutboxMessage, 16)
	cc := f.ctrl.NewControlChannel(outbox, "")
	t.Cleanup(cc.Close)

	welcome := nextFrame(t, outbox)
	assert.Equal(t, "welcome", welcome["type"])
	assert.Equal(t, true, welcome["needsAuth"])
	return cc, outbox
}

func (f *fixture) authFrame(deviceID, ts string) []byte {
	return mustJSON(map[string]interface{}{
		"type":      "auth",
		"deviceId":  deviceID,
		"timestamp": ts,
		"signature": f.codec.Sign(deviceID, testAuthKey, ts),
	})
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func nextFrame(t *testing.T, outbox <-chan *websocket.OutboxMessage) map[string]interface{} {
	t.Helper()
	select {
	case msg := <-outbox:
		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(msg.Data, &out))
		return out
	case <-time.After(time.Second):
		t.Fatal("no frame queued")
	}
	return nil
}

func assertNoFrame(t *testing.T, outbox <-chan *websocket.OutboxMessage) {
	t.Helper()
	select {
	case msg := <-outbox:
		t.Fatalf("unexpected frame %s", msg.Data)
	default:
	}
}

func assertErrorFrame(t *testing.T, outbox <-chan *websocket.OutboxMessage, text string) {
	t.Helper()
	frame := nextFrame(t, outbox)
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, text, frame["message"])
}

func TestAuthenticateUnclaimedDevice(t *testing.T) {
	f := newFixture(t, false)
	cc, outbox := f.newChannel(t)

	_, flag, err := cc.HandleMessage(f.authFrame(testDeviceID, testTS))
	require.NoError(t, err)
	assert.Equal(t, websocket.FlagContinue, flag)

	frame := nextFrame(t, outbox)
	assert.Equal(t, "auth_success", frame["type"])
	assert.Equal(t, false, frame["claimed"])
	assertNoFrame(t, outbox)

	assert.Equal(t, StatusAuthenticated, cc.Status())
	assert.Equal(t, testDeviceID, cc.DeviceID())
	sink, ok := f.reg.Get(testDeviceID)
	require.True(t, ok)
	assert.Equal(t, cc, sink)
	assert.Equal(t, []model.DeviceStatus{model.DeviceStatusConnected}, f.publisher.Statuses())
}

func TestAuthenticateClaimedDeviceSendsConfig(t *testing.T) {
	f := newFixture(t, true)
	cc, outbox := f.newChannel(t)

	_, _, err := cc.HandleMessage(f.authFrame(testDeviceID, testTS))
	require.NoError(t, err)

	frame := nextFrame(t, outbox)
	assert.Equal(t, "auth_success", frame["type"])
	assert.Equal(t, true, frame["claimed"])

	frame = nextFrame(t, outbox)
	assert.Equal(t, "config", frame["type"])
	assert.Equal(t, float64(15), frame["thresholdRed"])
	assert.Equal(t, float64(40), frame["thresholdYellow"])
	assert.Equal(t, float64(70), frame["thresholdGreen"])
}

func TestAuthenticationErrors(t *testing.T) {
	f := newFixture(t, false)
	cc, outbox := f.newChannel(t)

	cc.HandleMessage([]byte(`{"type":"auth","deviceId":"d1"}`))
	assertErrorFrame(t, outbox, "Invalid authentication message")

	cc.HandleMessage(f.authFrame("unknown", testTS))
	assertErrorFrame(t, outbox, "Device not found")

	bad := mustJSON(map[string]interface{}{
		"type":      "auth",
		"deviceId":  testDeviceID,
		"timestamp": testTS,
		"signature": f.codec.Sign(testDeviceID, "wrong-key", testTS),
	})
	cc.HandleMessage(bad)
	assertErrorFrame(t, outbox, "Authentication failed")

	assert.Equal(t, StatusConnecting, cc.Status())
	assert.False(t, f.reg.Has(testDeviceID))
	assert.Empty(t, f.publisher.Statuses())

	// The device may retry after a failure.
	cc.HandleMessage(f.authFrame(testDeviceID, testTS))
	assert.Equal(t, "auth_success", nextFrame(t, outbox)["type"])
}

func TestProtocolErrors(t *testing.T) {
	f := newFixture(t, true)
	cc, outbox := f.newChannel(t)

	cc.HandleMessage([]byte(`not json`))
	assertErrorFrame(t, outbox, "Invalid message format")

	cc.HandleMessage([]byte(`[1,2,3]`))
	assertErrorFrame(t, outbox, "Invalid message format")

	cc.HandleMessage([]byte(`{"type":"measurement","deviceId":"d1","moistureLevel":50}`))
	assertErrorFrame(t, outbox, "Please authenticate first")

	cc.HandleMessage([]byte(`{"type":"reboot"}`))
	assertErrorFrame(t, outbox, "Please authenticate first")

	cc.HandleMessage(f.authFrame(testDeviceID, testTS))
	nextFrame(t, outbox)
	nextFrame(t, outbox)

	cc.HandleMessage([]byte(`{"type":"reboot"}`))
	assertErrorFrame(t, outbox, "Unknown message type")

	cc.HandleMessage([]byte(`{"deviceId":"d1"}`))
	assertErrorFrame(t, outbox, "Unknown message type")

	assert.Equal(t, StatusAuthenticated, cc.Status())
}

func TestMeasurementFlow(t *testing.T) {
	f := newFixture(t, false)
	cc, outbox := f.newChannel(t)
	ctx := context.Background()

	cc.HandleMessage(f.authFrame(testDeviceID, testTS))
	nextFrame(t, outbox)

	cc.HandleMessage([]byte(`{"type":"measurement","deviceId":"d1","moistureLevel":55}`))
	assertErrorFrame(t, outbox, "Device not claimed yet")

	ms, err := f.store.Measurements().FindLatestByDeviceID(ctx, testDeviceID, 10)
	require.NoError(t, err)
	assert.Empty(t, ms)

	// Claim out of band. The session picks it up on the next measurement.
	owner := "u1"
	claimed := true
	_, err = f.store.Devices().Update(ctx, testDeviceID, model.DeviceUpdate{Claimed: &claimed, OwnerID: &owner})
	require.NoError(t, err)

	cc.HandleMessage([]byte(`{"type":"measurement","deviceId":"d1","moistureLevel":55}`))
	frame := nextFrame(t, outbox)
	assert.Equal(t, "ack", frame["type"])
	assert.Equal(t, "success", frame["status"])

	ms, err = f.store.Measurements().FindLatestByDeviceID(ctx, testDeviceID, 10)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, 55, ms[0].MoistureLevel)
}

func TestMeasurementValidation(t *testing.T) {
	f := newFixture(t, true)
	cc, outbox := f.newChannel(t)

	cc.HandleMessage(f.authFrame(testDeviceID, testTS))
	nextFrame(t, outbox)
	nextFrame(t, outbox)

	cc.HandleMessage([]byte(`{"type":"measurement","deviceId":"d2","moistureLevel":55}`))
	assertErrorFrame(t, outbox, "Device ID mismatch")

	for _, frame := range []string{
		`{"type":"measurement","deviceId":"d1","moistureLevel":101}`,
		`{"type":"measurement","deviceId":"d1","moistureLevel":-1}`,
		`{"type":"measurement","deviceId":"d1","moistureLevel":"55"}`,
		`{"type":"measurement","deviceId":"d1","moistureLevel":5.5}`,
		`{"type":"measurement","deviceId":"d1"}`,
	} {
		cc.HandleMessage([]byte(frame))
		assertErrorFrame(t, outbox, "Invalid measurement format")
	}

	ms, err := f.store.Measurements().FindLatestByDeviceID(context.Background(), testDeviceID, 10)
	require.NoError(t, err)
	assert.Empty(t, ms)
}

func TestCloseReleasesBinding(t *testing.T) {
	f := newFixture(t, false)
	cc, outbox := f.newChannel(t)

	cc.HandleMessage(f.authFrame(testDeviceID, testTS))
	nextFrame(t, outbox)

	cc.Close()
	cc.Close()

	assert.Equal(t, StatusClosed, cc.Status())
	assert.False(t, f.reg.Has(testDeviceID))
	assert.False(t, cc.Push([]byte(`{}`)))
	assert.Equal(t, []model.DeviceStatus{
		model.DeviceStatusConnected,
		model.DeviceStatusDisconnected,
	}, f.publisher.Statuses())

	// Frames after close are dropped silently.
	_, _, err := cc.HandleMessage(f.authFrame(testDeviceID, testTS))
	assert.NoError(t, err)
	assertNoFrame(t, outbox)
}

func TestNewerConnectionKeepsBinding(t *testing.T) {
	f := newFixture(t, false)
	first, outbox1 := f.newChannel(t)
	second, outbox2 := f.newChannel(t)

	first.HandleMessage(f.authFrame(testDeviceID, testTS))
	nextFrame(t, outbox1)
	second.HandleMessage(f.authFrame(testDeviceID, testTS))
	nextFrame(t, outbox2)

	sink, ok := f.reg.Get(testDeviceID)
	require.True(t, ok)
	assert.Equal(t, second, sink)

	first.Close()

	sink, ok = f.reg.Get(testDeviceID)
	require.True(t, ok)
	assert.Equal(t, second, sink)
	assert.Equal(t, []model.DeviceStatus{
		model.DeviceStatusConnected,
		model.DeviceStatusConnected,
	}, f.publisher.Statuses())

	second.Close()
	assert.False(t, f.reg.Has(testDeviceID))
}

func TestPushQueuesFrame(t *testing.T) {
	f := newFixture(t, false)
	cc, outbox := f.newChannel(t)

	assert.True(t, cc.Push([]byte(`{"type":"pair","pairingCode":"1234"}`)))
	frame := nextFrame(t, outbox)
	assert.Equal(t, "pair", frame["type"])
}

func TestAuthenticationTimeout(t *testing.T) {
	f := newFixture(t, false)
	f.ctrl.authTimeout = 20 * time.Millisecond
	_, outbox := f.newChannel(t)

	select {
	case msg := <-outbox:
		assert.Equal(t, websocket.FlagCloseGracefully, msg.Flag)
		assert.Contains(t, string(msg.Data), "Authentication timeout")
	case <-time.After(time.Second):
		t.Fatal("connection was not closed")
	}
}
