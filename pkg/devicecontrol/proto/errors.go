package proto

// Error texts sent to the device in error frames.
const (
	ErrTextInvalidFormat      = "Invalid message format"
	ErrTextInvalidAuth        = "Invalid authentication message"
	ErrTextDeviceNotFound     = "Device not found"
	ErrTextAuthFailed         = "Authentication failed"
	ErrTextAuthFirst          = "Please authenticate first"
	ErrTextInvalidMeasurement = "Invalid measurement format"
	ErrTextDeviceIDMismatch   = "Device ID mismatch"
	ErrTextNotClaimed         = "Device not claimed yet"
	ErrTextUnknownType        = "Unknown message type"
	ErrTextLookupFailed       = "Device lookup failed"
	ErrTextStoreFailed        = "Failed to store measurement"
	ErrTextAuthTimeout        = "Authentication timeout"
)

type protoError string

const (
	ErrInvalidFormat      = protoError("devicecontrol: message is not a JSON object")
	ErrInvalidAuth        = protoError("devicecontrol: invalid auth message")
	ErrInvalidMeasurement = protoError("devicecontrol: invalid measurement message")
)

func (e protoError) Error() string {
	return string(e)
}
