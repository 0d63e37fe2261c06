// Package message holds the JSON messages exchanged over the NATS control
// plane and event subjects.
package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

//
// SourceType definition
//

type SourceType int

const (
	SourceTypeSystem SourceType = iota
	SourceTypeDevice
)

func (t SourceType) String() string {
	return sourceTypeToString[t]
}

var sourceTypeToString = map[SourceType]string{
	SourceTypeSystem: "SYSTEM",
	SourceTypeDevice: "DEVICE",
}

var stringToSourceType = map[string]SourceType{
	"SYSTEM": SourceTypeSystem,
	"DEVICE": SourceTypeDevice,
}

func (t SourceType) MarshalJSON() ([]byte, error) {
	buffer := bytes.NewBufferString(`"`)
	buffer.WriteString(sourceTypeToString[t])
	buffer.WriteString(`"`)
	return buffer.Bytes(), nil
}

func (t *SourceType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, ok := stringToSourceType[s]
	if !ok {
		return fmt.Errorf("invalid source type '%s'", s)
	}
	*t = v
	return nil
}

//
// ReplyStatus definition
//

type ReplyStatus int

const (
	ReplyStatusSuccess ReplyStatus = iota
	ReplyStatusError
)

var replyStatusToString = map[ReplyStatus]string{
	ReplyStatusSuccess: "success",
	ReplyStatusError:   "error",
}

func (s ReplyStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(replyStatusToString[s])
}

func (s *ReplyStatus) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v {
	case "success":
		*s = ReplyStatusSuccess
	case "error":
		*s = ReplyStatusError
	default:
		return fmt.Errorf("invalid reply status '%s'", v)
	}
	return nil
}

// CommandPayload carries the optional arguments of a configure or pair
// command.
type CommandPayload struct {
	ThresholdRed    *int    `json:"thresholdRed,omitempty"`
	ThresholdYellow *int    `json:"thresholdYellow,omitempty"`
	ThresholdGreen  *int    `json:"thresholdGreen,omitempty"`
	PairingCode     *string `json:"pairingCode,omitempty"`
}

type CommandRequest struct {
	Type     string         `json:"type"`
	DeviceID string         `json:"deviceId"`
	Payload  CommandPayload `json:"payload"`
}

type ClaimRequest struct {
	DeviceID string `json:"deviceId"`
	AuthKey  string `json:"authKey"`
	Name     string `json:"name,omitempty"`
	UserID   string `json:"userId"`
}

type Reply struct {
	Status       ReplyStatus `json:"status"`
	Results      interface{} `json:"results,omitempty"`
	ErrorReason  string      `json:"error_reason,omitempty"`
	ErrorDetails interface{} `json:"error_details,omitempty"`
}

type EventMessage struct {
	SourceType SourceType  `json:"source_type"`
	SourceID   string      `json:"source_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Details    interface{} `json:"details"`
}

type DeviceStatusDetails struct {
	Status       string `json:"status"`
	ConnectionID string `json:"connection_id,omitempty"`
}

type MeasurementDetails struct {
	ID            string    `json:"id"`
	MoistureLevel int       `json:"moisture_level"`
	Timestamp     time.Time `json:"timestamp"`
}
