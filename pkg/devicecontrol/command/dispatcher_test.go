package command

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/message"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/registry"
	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/nsyszr/soilcontrol/pkg/storage"
	"github.com/nsyszr/soilcontrol/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	frames [][]byte
	full   bool
}

func (s *fakeSink) Push(data []byte) bool {
	if s.full {
		return false
	}
	s.frames = append(s.frames, data)
	return true
}

func (s *fakeSink) last(t *testing.T) map[string]interface{} {
	t.Helper()
	require.NotEmpty(t, s.frames)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(s.frames[len(s.frames)-1], &out))
	return out
}

func intPtr(v int) *int {
	return &v
}

func setup(t *testing.T, claimed bool) (*Dispatcher, storage.Interface, *registry.Registry) {
	t.Helper()
	store := memory.NewStore()
	d := &model.Device{
		ID:              "d1",
		Name:            "Device d1",
		AuthKey:         "k1",
		ThresholdRed:    10,
		ThresholdYellow: 40,
		ThresholdGreen:  60,
	}
	if claimed {
		owner := "u1"
		d.Claimed = true
		d.OwnerID = &owner
	}
	require.NoError(t, store.Devices().Create(context.Background(), d))

	reg := registry.New()
	return NewDispatcher(store.Devices(), reg), store, reg
}

func TestClaimNotifiesConnectedDevice(t *testing.T) {
	ctx := context.Background()
	disp, store, reg := setup(t, false)
	sink := &fakeSink{}
	reg.Set("d1", sink)

	res, err := disp.Claim(ctx, ClaimRequest{DeviceID: "d1", AuthKey: "k1", Name: "Garden", UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, res.Notified)
	assert.Equal(t, DeviceSummary{ID: "d1", Name: "Garden", Claimed: true}, res.Device)

	frame := sink.last(t)
	assert.Equal(t, "claimed", frame["type"])
	assert.Equal(t, true, frame["claimed"])
	assert.Equal(t, float64(10), frame["thresholdRed"])
	assert.Equal(t, float64(40), frame["thresholdYellow"])
	assert.Equal(t, float64(60), frame["thresholdGreen"])

	d, err := store.Devices().FindByID(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, d.Claimed)
	assert.True(t, d.IsOwnedBy("u1"))
}

func TestClaimDisconnectedDevice(t *testing.T) {
	disp, store, _ := setup(t, false)

	res, err := disp.Claim(context.Background(), ClaimRequest{DeviceID: "d1", AuthKey: "k1", UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, res.Notified)
	assert.Equal(t, "Device d1", res.Device.Name)

	d, err := store.Devices().FindByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, d.Claimed)
}

func TestClaimRejections(t *testing.T) {
	ctx := context.Background()

	disp, store, reg := setup(t, false)
	sink := &fakeSink{}
	reg.Set("d1", sink)

	_, err := disp.Claim(ctx, ClaimRequest{DeviceID: "unknown", AuthKey: "k1", UserID: "u1"})
	assert.Equal(t, ErrDeviceNotFound, err)
	assert.True(t, IsNotFound(err))

	_, err = disp.Claim(ctx, ClaimRequest{DeviceID: "d1", AuthKey: "k2", UserID: "u1"})
	assert.Equal(t, ErrInvalidAuthKey, err)
	assert.True(t, IsUnauthorized(err))

	_, err = disp.Claim(ctx, ClaimRequest{DeviceID: "d1", AuthKey: "k1"})
	assert.True(t, IsInvalid(err))

	d, err := store.Devices().FindByID(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, d.Claimed)
	assert.Empty(t, sink.frames)
}

func TestClaimAlreadyClaimedDevice(t *testing.T) {
	ctx := context.Background()
	disp, store, reg := setup(t, true)
	sink := &fakeSink{}
	reg.Set("d1", sink)

	_, err := disp.Claim(ctx, ClaimRequest{DeviceID: "d1", AuthKey: "k1", Name: "Stolen", UserID: "u2"})
	assert.Equal(t, ErrDeviceAlreadyClaimed, err)
	assert.True(t, IsConflict(err))
	assert.Equal(t, ErrReasonAlreadyClaimed, Reason(err))

	d, err := store.Devices().FindByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "Device d1", d.Name)
	assert.True(t, d.IsOwnedBy("u1"))
	assert.Empty(t, sink.frames)
}

func TestConfigureConnectedDevice(t *testing.T) {
	ctx := context.Background()
	disp, store, reg := setup(t, true)
	sink := &fakeSink{}
	reg.Set("d1", sink)

	res, err := disp.Command(ctx, CommandRequest{
		DeviceID: "d1",
		Type:     TypeConfigure,
		Payload:  message.CommandPayload{ThresholdRed: intPtr(20), ThresholdGreen: intPtr(80)},
	})
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.Equal(t, MessageDelivered, res.Message)

	frame := sink.last(t)
	assert.Equal(t, map[string]interface{}{
		"type":           "configure",
		"thresholdRed":   float64(20),
		"thresholdGreen": float64(80),
	}, frame)

	d, err := store.Devices().FindByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 20, d.ThresholdRed)
	assert.Equal(t, 40, d.ThresholdYellow)
	assert.Equal(t, 80, d.ThresholdGreen)
}

func TestConfigureDisconnectedDevice(t *testing.T) {
	ctx := context.Background()
	disp, store, _ := setup(t, true)

	res, err := disp.Command(ctx, CommandRequest{
		DeviceID: "d1",
		Type:     TypeConfigure,
		Payload:  message.CommandPayload{ThresholdYellow: intPtr(45)},
	})
	require.NoError(t, err)
	assert.False(t, res.Delivered)
	assert.Equal(t, MessageOffline, res.Message)

	d, err := store.Devices().FindByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 45, d.ThresholdYellow)
}

func TestPairIsForwardedWithoutPersistence(t *testing.T) {
	ctx := context.Background()
	disp, store, reg := setup(t, true)
	sink := &fakeSink{}
	reg.Set("d1", sink)

	code := "123456"
	res, err := disp.Command(ctx, CommandRequest{
		DeviceID: "d1",
		Type:     TypePair,
		Payload:  message.CommandPayload{PairingCode: &code, ThresholdRed: intPtr(99)},
	})
	require.NoError(t, err)
	assert.True(t, res.Delivered)

	frame := sink.last(t)
	assert.Equal(t, "pair", frame["type"])
	assert.Equal(t, "123456", frame["pairingCode"])

	d, err := store.Devices().FindByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 10, d.ThresholdRed)
}

func TestCommandRejections(t *testing.T) {
	ctx := context.Background()
	disp, store, reg := setup(t, true)
	sink := &fakeSink{}
	reg.Set("d1", sink)

	_, err := disp.Command(ctx, CommandRequest{DeviceID: "d1", Type: "reboot"})
	assert.Equal(t, ErrInvalidCommand, err)

	_, err = disp.Command(ctx, CommandRequest{
		DeviceID: "d1",
		Type:     TypeConfigure,
		Payload:  message.CommandPayload{ThresholdRed: intPtr(101)},
	})
	assert.True(t, IsInvalid(err))
	assert.EqualError(t, err, "thresholdRed must be between 0 and 100")

	_, err = disp.Command(ctx, CommandRequest{DeviceID: "unknown", Type: TypePair})
	assert.True(t, IsNotFound(err))

	_, err = disp.Command(ctx, CommandRequest{
		DeviceID: "d1",
		Type:     TypeConfigure,
		Payload:  message.CommandPayload{ThresholdRed: intPtr(30)},
		OwnerID:  "u2",
	})
	assert.True(t, IsForbidden(err))

	d, err := store.Devices().FindByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 10, d.ThresholdRed)
	assert.Empty(t, sink.frames)
}

func TestFullOutboxReportsOffline(t *testing.T) {
	disp, _, reg := setup(t, true)
	reg.Set("d1", &fakeSink{full: true})

	res, err := disp.Command(context.Background(), CommandRequest{DeviceID: "d1", Type: TypePair})
	require.NoError(t, err)
	assert.False(t, res.Delivered)
}

func TestReasonOfForeignError(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, ErrReasonTechnicalException, Reason(err))
	assert.False(t, IsNotFound(err))
}
