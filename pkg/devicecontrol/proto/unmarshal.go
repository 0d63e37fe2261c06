package proto

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// UnmarshalMessage decodes the envelope of a frame. It fails only when the
// frame is not a JSON object; a missing or non-string type yields
// MessageTypeInvalid together with the decoded fields.
func UnmarshalMessage(data []byte) (MessageType, map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return MessageTypeInvalid, nil, ErrInvalidFormat
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(trimmed, &fields); err != nil || fields == nil {
		return MessageTypeInvalid, nil, ErrInvalidFormat
	}

	msgType, _ := fields["type"].(string)
	return MessageType(msgType), fields, nil
}

// UnmarshalAuthMessage validates the fields of an auth frame.
func UnmarshalAuthMessage(fields map[string]interface{}) (*AuthMessage, error) {
	deviceID, ok := fields["deviceId"].(string)
	if !ok || deviceID == "" {
		return nil, ErrInvalidAuth
	}
	timestamp, ok := fields["timestamp"].(string)
	if !ok || timestamp == "" {
		return nil, ErrInvalidAuth
	}
	signature, ok := fields["signature"].(string)
	if !ok || signature == "" {
		return nil, ErrInvalidAuth
	}

	return &AuthMessage{
		DeviceID:  deviceID,
		Timestamp: timestamp,
		Signature: signature,
	}, nil
}

// UnmarshalMeasurementMessage validates the fields of a measurement frame.
// The moisture level must be an integral number within [0,100].
func UnmarshalMeasurementMessage(fields map[string]interface{}) (*MeasurementMessage, error) {
	deviceID, ok := fields["deviceId"].(string)
	if !ok || deviceID == "" {
		return nil, ErrInvalidMeasurement
	}

	level, ok := fields["moistureLevel"].(float64)
	if !ok || level != math.Trunc(level) || level < 0 || level > 100 {
		return nil, ErrInvalidMeasurement
	}

	msg := &MeasurementMessage{
		DeviceID:      deviceID,
		MoistureLevel: int(level),
	}

	if v, present := fields["timestamp"]; present && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, ErrInvalidMeasurement
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, ErrInvalidMeasurement
		}
		msg.Timestamp = ts.UTC()
	}

	return msg, nil
}
