package resource

import (
	"testing"
	"time"

	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRegisterDevice(t *testing.T) {
	_, err := ValidateRegisterDevice(&RegisterDeviceResource{})
	assert.EqualError(t, err, "deviceId is required")

	m, err := ValidateRegisterDevice(&RegisterDeviceResource{DeviceID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, "Device d1", m.Name)
	assert.False(t, m.Claimed)
	assert.Equal(t, 10, m.ThresholdRed)
	assert.Equal(t, 40, m.ThresholdYellow)
	assert.Equal(t, 60, m.ThresholdGreen)
}

func TestNewDeviceListSortsAndMarksConnected(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 400000000, time.UTC)
	list := NewDeviceList([]model.Device{
		{ID: "b", Name: "B", CreatedAt: now},
		{ID: "a", Name: "A"},
	}, func(id string) bool { return id == "b" })

	require.Len(t, list.Members, 2)
	assert.Equal(t, "a", list.Members[0].ID)
	assert.False(t, list.Members[0].Connected)
	assert.Nil(t, list.Members[0].CreatedAt)
	assert.Equal(t, "b", list.Members[1].ID)
	assert.True(t, list.Members[1].Connected)
	assert.Equal(t, now.Round(time.Second), *list.Members[1].CreatedAt)

	assert.Empty(t, NewDeviceList(nil, nil).Members)
}

func TestNewSessionList(t *testing.T) {
	list := NewSessionList([]string{"a", "b"})
	require.Len(t, list.Members, 2)
	assert.Equal(t, "b", list.Members[1].DeviceID)
}
