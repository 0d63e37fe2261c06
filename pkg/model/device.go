package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Default thresholds assigned to a freshly registered device.
const (
	DefaultThresholdRed    = 10
	DefaultThresholdYellow = 40
	DefaultThresholdGreen  = 60
)

// Device is a model of the persistency layer
type Device struct {
	ID              string
	Name            string
	AuthKey         string
	Claimed         bool
	OwnerID         *string
	ThresholdRed    int
	ThresholdYellow int
	ThresholdGreen  int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsOwnedBy reports whether the device is claimed by the given user.
func (m *Device) IsOwnedBy(userID string) bool {
	return m.Claimed && m.OwnerID != nil && *m.OwnerID == userID
}

// DeviceUpdate is a partial update of a device. Nil fields keep their
// current value. The auth key is immutable and therefore not part of it.
type DeviceUpdate struct {
	Name            *string
	Claimed         *bool
	OwnerID         *string
	ThresholdRed    *int
	ThresholdYellow *int
	ThresholdGreen  *int
}

// IsEmpty reports whether the update would not change anything.
func (u *DeviceUpdate) IsEmpty() bool {
	return u.Name == nil && u.Claimed == nil && u.OwnerID == nil &&
		u.ThresholdRed == nil && u.ThresholdYellow == nil && u.ThresholdGreen == nil
}

// Apply copies all supplied fields onto m.
func (u *DeviceUpdate) Apply(m *Device) {
	if u.Name != nil {
		m.Name = *u.Name
	}
	if u.Claimed != nil {
		m.Claimed = *u.Claimed
	}
	if u.OwnerID != nil {
		owner := *u.OwnerID
		m.OwnerID = &owner
	}
	if u.ThresholdRed != nil {
		m.ThresholdRed = *u.ThresholdRed
	}
	if u.ThresholdYellow != nil {
		m.ThresholdYellow = *u.ThresholdYellow
	}
	if u.ThresholdGreen != nil {
		m.ThresholdGreen = *u.ThresholdGreen
	}
}

// NewAuthKey returns 16 random bytes hex encoded.
func NewAuthKey() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
