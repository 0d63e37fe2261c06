package model

import "time"

// Measurement is a single soil moisture reading reported by a device.
type Measurement struct {
	ID            string
	DeviceID      string
	MoistureLevel int
	Timestamp     time.Time
	CreatedAt     time.Time
}
