package resource

import (
	"fmt"
	"sort"
	"time"

	"github.com/nsyszr/soilcontrol/pkg/model"
)

type DeviceResource struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Claimed         bool       `json:"claimed"`
	Connected       bool       `json:"connected"`
	ThresholdRed    int        `json:"thresholdRed"`
	ThresholdYellow int        `json:"thresholdYellow"`
	ThresholdGreen  int        `json:"thresholdGreen"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

type DeviceListResource struct {
	Members []*DeviceResource `json:"members"`
}

func NewDevice(m *model.Device, connected bool) (out *DeviceResource) {
	out = &DeviceResource{
		ID:              m.ID,
		Name:            m.Name,
		Claimed:         m.Claimed,
		Connected:       connected,
		ThresholdRed:    m.ThresholdRed,
		ThresholdYellow: m.ThresholdYellow,
		ThresholdGreen:  m.ThresholdGreen,
	}

	if !m.CreatedAt.IsZero() {
		out.CreatedAt = &time.Time{}
		*out.CreatedAt = m.CreatedAt.Round(time.Second)
	}
	if !m.UpdatedAt.IsZero() {
		out.UpdatedAt = &time.Time{}
		*out.UpdatedAt = m.UpdatedAt.Round(time.Second)
	}

	return // out
}

// NewDeviceList converts the devices. isConnected may be nil.
func NewDeviceList(m []model.Device, isConnected func(id string) bool) (out *DeviceListResource) {
	out = &DeviceListResource{
		Members: make([]*DeviceResource, 0, len(m)),
	}

	for i := range m {
		connected := isConnected != nil && isConnected(m[i].ID)
		out.Members = append(out.Members, NewDevice(&m[i], connected))
	}

	// Default sort by ID
	sort.Slice(out.Members, func(i, j int) bool {
		return out.Members[i].ID < out.Members[j].ID
	})

	return // out
}

type RegisterDeviceResource struct {
	DeviceID string `json:"deviceId"`
	AuthKey  string `json:"authKey,omitempty"`
}

// ValidateRegisterDevice returns a new unclaimed device with default
// thresholds. The auth key is set by the caller.
func ValidateRegisterDevice(r *RegisterDeviceResource) (m *model.Device, err error) {
	if r.DeviceID == "" {
		return nil, fmt.Errorf("deviceId is required")
	}

	m = &model.Device{
		ID:              r.DeviceID,
		Name:            fmt.Sprintf("Device %s", r.DeviceID),
		ThresholdRed:    model.DefaultThresholdRed,
		ThresholdYellow: model.DefaultThresholdYellow,
		ThresholdGreen:  model.DefaultThresholdGreen,
	}

	return m, nil
}

type ClaimDeviceResource struct {
	DeviceID string `json:"deviceId"`
	AuthKey  string `json:"authKey"`
	Name     string `json:"name,omitempty"`
}

func ValidateClaimDevice(r *ClaimDeviceResource) error {
	if r.DeviceID == "" {
		return fmt.Errorf("deviceId is required")
	}
	if r.AuthKey == "" {
		return fmt.Errorf("authKey is required")
	}
	return nil
}
