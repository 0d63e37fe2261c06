package resource

type RealtimeEventResource struct {
	Topic    string      `json:"topic"`
	DeviceID string      `json:"deviceId,omitempty"`
	Data     interface{} `json:"data"`
}

func NewRealtimeEvent(topic, deviceID string, data interface{}) *RealtimeEventResource {
	return &RealtimeEventResource{
		Topic:    topic,
		DeviceID: deviceID,
		Data:     data,
	}
}
