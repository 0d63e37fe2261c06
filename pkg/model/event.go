package model

import "time"

// DeviceStatus is the connectivity state announced for a device.
type DeviceStatus string

const (
	DeviceStatusConnected    DeviceStatus = "CONNECTED"
	DeviceStatusDisconnected DeviceStatus = "DISCONNECTED"
)

// StatusEvent is emitted whenever a device connection is bound or released.
type StatusEvent struct {
	DeviceID     string
	ConnectionID string
	Status       DeviceStatus
	Timestamp    time.Time
}
