package proto

import "time"

// MessageType is the value of the "type" field of every frame.
type MessageType string

const (
	MessageTypeInvalid     MessageType = ""
	MessageTypeAuth        MessageType = "auth"
	MessageTypeMeasurement MessageType = "measurement"
	MessageTypeWelcome     MessageType = "welcome"
	MessageTypeAuthSuccess MessageType = "auth_success"
	MessageTypeConfig      MessageType = "config"
	MessageTypeClaimed     MessageType = "claimed"
	MessageTypeConfigure   MessageType = "configure"
	MessageTypePair        MessageType = "pair"
	MessageTypeAck         MessageType = "ack"
	MessageTypeError       MessageType = "error"
)

func (msgType MessageType) String() string {
	return string(msgType)
}

// Thresholds are the moisture levels the device uses for its indicator.
type Thresholds struct {
	ThresholdRed    int `json:"thresholdRed"`
	ThresholdYellow int `json:"thresholdYellow"`
	ThresholdGreen  int `json:"thresholdGreen"`
}

// AuthMessage is sent by the device to authenticate the connection.
type AuthMessage struct {
	DeviceID  string
	Timestamp string
	Signature string
}

// MeasurementMessage carries one moisture reading. Timestamp is zero when
// the device did not send one.
type MeasurementMessage struct {
	DeviceID      string
	MoistureLevel int
	Timestamp     time.Time
}

type welcomeMessage struct {
	Type      MessageType `json:"type"`
	Message   string      `json:"message"`
	NeedsAuth bool        `json:"needsAuth"`
}

type authSuccessMessage struct {
	Type    MessageType `json:"type"`
	Claimed bool        `json:"claimed"`
}

type configMessage struct {
	Type MessageType `json:"type"`
	Thresholds
}

type claimedMessage struct {
	Type    MessageType `json:"type"`
	Claimed bool        `json:"claimed"`
	Thresholds
}

type ackMessage struct {
	Type   MessageType `json:"type"`
	Status string      `json:"status"`
}

type errorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}
