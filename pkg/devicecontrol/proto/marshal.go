package proto

import "encoding/json"

// WelcomeText is the greeting sent right after the connection opens.
const WelcomeText = "Please authenticate"

func MarshalNewWelcomeMessage() ([]byte, error) {
	return json.Marshal(&welcomeMessage{
		Type:      MessageTypeWelcome,
		Message:   WelcomeText,
		NeedsAuth: true,
	})
}

func MarshalNewAuthSuccessMessage(claimed bool) ([]byte, error) {
	return json.Marshal(&authSuccessMessage{
		Type:    MessageTypeAuthSuccess,
		Claimed: claimed,
	})
}

func MarshalNewConfigMessage(th Thresholds) ([]byte, error) {
	return json.Marshal(&configMessage{
		Type:       MessageTypeConfig,
		Thresholds: th,
	})
}

func MarshalNewClaimedMessage(th Thresholds) ([]byte, error) {
	return json.Marshal(&claimedMessage{
		Type:       MessageTypeClaimed,
		Claimed:    true,
		Thresholds: th,
	})
}

func MarshalNewAckMessage() ([]byte, error) {
	return json.Marshal(&ackMessage{
		Type:   MessageTypeAck,
		Status: "success",
	})
}

func MarshalNewErrorMessage(text string) ([]byte, error) {
	return json.Marshal(&errorMessage{
		Type:    MessageTypeError,
		Message: text,
	})
}

// MarshalNewCommandMessage flattens payload next to the type field. The
// command type always wins over a "type" key in the payload.
func MarshalNewCommandMessage(msgType MessageType, payload map[string]interface{}) ([]byte, error) {
	out := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["type"] = msgType
	return json.Marshal(out)
}
