package resource

type SessionResource struct {
	DeviceID string `json:"deviceId"`
}

type SessionListResource struct {
	Members []*SessionResource `json:"members"`
}

// NewSessionList expects sorted device ids.
func NewSessionList(deviceIDs []string) (out *SessionListResource) {
	out = &SessionListResource{
		Members: make([]*SessionResource, 0, len(deviceIDs)),
	}

	for _, id := range deviceIDs {
		out.Members = append(out.Members, &SessionResource{DeviceID: id})
	}

	return // out
}
