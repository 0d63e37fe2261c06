package controlchannel

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readServerJSON(t *testing.T, conn net.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	data, op, err := wsutil.ReadServerData(conn)
	require.NoError(t, err)
	require.Equal(t, ws.OpText, op)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func serve(ctrl *Controller, conn net.Conn) <-chan struct{} {
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		ctrl.Serve(conn, "test")
	}()
	return doneCh
}

func waitDone(t *testing.T, doneCh <-chan struct{}) {
	t.Helper()
	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return")
	}
}

func TestServeAuthenticateAndDisconnect(t *testing.T) {
	f := newFixture(t, true)
	server, client := net.Pipe()
	doneCh := serve(f.ctrl, server)

	assert.Equal(t, "welcome", readServerJSON(t, client)["type"])

	require.NoError(t, wsutil.WriteClientText(client, f.authFrame(testDeviceID, testTS)))
	assert.Equal(t, "auth_success", readServerJSON(t, client)["type"])
	assert.Equal(t, "config", readServerJSON(t, client)["type"])
	assert.True(t, f.reg.Has(testDeviceID))

	require.NoError(t, wsutil.WriteClientText(client,
		[]byte(`{"type":"measurement","deviceId":"d1","moistureLevel":42}`)))
	assert.Equal(t, "ack", readServerJSON(t, client)["type"])

	// Frames pushed through the registry reach the device.
	sink, ok := f.reg.Get(testDeviceID)
	require.True(t, ok)
	require.True(t, sink.Push([]byte(`{"type":"pair","pairingCode":"1234"}`)))
	assert.Equal(t, "pair", readServerJSON(t, client)["type"])

	require.NoError(t, client.Close())
	waitDone(t, doneCh)

	assert.False(t, f.reg.Has(testDeviceID))
	assert.Equal(t, []model.DeviceStatus{
		model.DeviceStatusConnected,
		model.DeviceStatusDisconnected,
	}, f.publisher.Statuses())
}

func TestServeClosesUnauthenticatedConnection(t *testing.T) {
	f := newFixture(t, false)
	f.ctrl.authTimeout = 50 * time.Millisecond
	server, client := net.Pipe()
	defer client.Close()
	doneCh := serve(f.ctrl, server)

	assert.Equal(t, "welcome", readServerJSON(t, client)["type"])

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	frame, err := ws.ReadFrame(client)
	require.NoError(t, err)
	assert.Equal(t, ws.OpText, frame.Header.OpCode)
	assert.Contains(t, string(frame.Payload), "Authentication timeout")

	frame, err = ws.ReadFrame(client)
	require.NoError(t, err)
	assert.Equal(t, ws.OpClose, frame.Header.OpCode)

	waitDone(t, doneCh)
	assert.Empty(t, f.publisher.Statuses())
}
