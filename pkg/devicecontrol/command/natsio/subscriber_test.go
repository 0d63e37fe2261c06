package natsio

import (
	"context"
	"testing"

	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/command"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/message"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/registry"
	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/nsyszr/soilcontrol/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubscriber(t *testing.T) *Subscriber {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.Devices().Create(context.Background(), &model.Device{
		ID: "d1", Name: "Device d1", AuthKey: "k1", ThresholdRed: 10, ThresholdYellow: 40, ThresholdGreen: 60,
	}))
	return NewSubscriber(nil, "soilcontrol.v1", command.NewDispatcher(store.Devices(), registry.New()))
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "soilcontrol.v1.command", CommandSubject("soilcontrol.v1"))
	assert.Equal(t, "soilcontrol.v1.claim", ClaimSubject("soilcontrol.v1"))
}

func TestSubscribeWithoutConnection(t *testing.T) {
	assert.Error(t, newTestSubscriber(t).Subscribe())
}

func TestHandleClaimAndCommandRequests(t *testing.T) {
	s := newTestSubscriber(t)

	rep := s.handleClaimRequest([]byte(`{"deviceId":"d1","authKey":"k1","userId":"u1"}`))
	require.Equal(t, message.ReplyStatusSuccess, rep.Status)
	claim, ok := rep.Results.(*command.ClaimResult)
	require.True(t, ok)
	assert.True(t, claim.Device.Claimed)
	assert.False(t, claim.Notified)

	rep = s.handleClaimRequest([]byte(`{"deviceId":"d1","authKey":"k1","userId":"u2"}`))
	assert.Equal(t, message.ReplyStatusError, rep.Status)
	assert.Equal(t, command.ErrReasonAlreadyClaimed, rep.ErrorReason)

	rep = s.handleCommandRequest([]byte(`{"type":"configure","deviceId":"d1","payload":{"thresholdRed":25}}`))
	require.Equal(t, message.ReplyStatusSuccess, rep.Status)
	res, ok := rep.Results.(*command.CommandResult)
	require.True(t, ok)
	assert.Equal(t, command.MessageOffline, res.Message)
}

func TestHandleMalformedRequests(t *testing.T) {
	s := newTestSubscriber(t)

	rep := s.handleCommandRequest([]byte(`nope`))
	assert.Equal(t, message.ReplyStatusError, rep.Status)
	assert.Equal(t, command.ErrReasonInvalidRequest, rep.ErrorReason)

	rep = s.handleCommandRequest([]byte(`{"type":"reboot","deviceId":"d1"}`))
	assert.Equal(t, command.ErrReasonInvalidCommand, rep.ErrorReason)
	assert.Equal(t, "Invalid command type", rep.ErrorDetails)

	rep = s.handleClaimRequest([]byte(`{"deviceId":"nope","authKey":"k1","userId":"u1"}`))
	assert.Equal(t, command.ErrReasonNotFound, rep.ErrorReason)
}
