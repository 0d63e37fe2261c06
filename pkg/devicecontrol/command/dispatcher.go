// Package command mutates device records on behalf of the control plane and
// pushes the changes to connected devices.
package command

import (
	"context"
	"crypto/subtle"

	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/message"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/proto"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/registry"
	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/nsyszr/soilcontrol/pkg/storage"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	TypeConfigure = "configure"
	TypePair      = "pair"
)

const (
	MessageDelivered = "Command sent to device"
	MessageOffline   = "Device is not currently connected."
)

// SinkLookup finds the live connection of a device.
type SinkLookup interface {
	Get(deviceID string) (registry.Sink, bool)
}

type ClaimRequest struct {
	DeviceID string
	AuthKey  string
	Name     string
	UserID   string
}

type ClaimResult struct {
	Device   DeviceSummary `json:"device"`
	Notified bool          `json:"notified"`
}

type DeviceSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Claimed bool   `json:"claimed"`
}

type CommandRequest struct {
	DeviceID string
	Type     string
	Payload  message.CommandPayload
	// OwnerID restricts the command to devices owned by the given user. It's
	// left empty when ownership was verified by the caller.
	OwnerID string
}

type CommandResult struct {
	Delivered bool   `json:"delivered"`
	Message   string `json:"message"`
}

type Dispatcher struct {
	devices storage.DeviceStore
	sinks   SinkLookup
}

func NewDispatcher(devices storage.DeviceStore, sinks SinkLookup) *Dispatcher {
	return &Dispatcher{
		devices: devices,
		sinks:   sinks,
	}
}

// Claim assigns an unclaimed device to a user. The device is notified when
// it's connected.
func (d *Dispatcher) Claim(ctx context.Context, req ClaimRequest) (*ClaimResult, error) {
	if req.UserID == "" || req.DeviceID == "" || req.AuthKey == "" {
		return nil, ErrInvalidRequest
	}

	device, err := d.devices.FindByID(ctx, req.DeviceID)
	if err == storage.ErrNotFound {
		return nil, ErrDeviceNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "command: find device")
	}

	if device.Claimed {
		return nil, ErrDeviceAlreadyClaimed
	}
	if subtle.ConstantTimeCompare([]byte(device.AuthKey), []byte(req.AuthKey)) != 1 {
		return nil, ErrInvalidAuthKey
	}

	claimed := true
	owner := req.UserID
	u := model.DeviceUpdate{
		Claimed: &claimed,
		OwnerID: &owner,
	}
	if req.Name != "" {
		name := req.Name
		u.Name = &name
	}

	device, err = d.devices.Update(ctx, req.DeviceID, u)
	if err != nil {
		return nil, errors.Wrap(err, "command: claim device")
	}

	logger := log.WithFields(log.Fields{"device_id": device.ID, "owner_id": owner})
	logger.Info("command claimed device")

	data, err := proto.MarshalNewClaimedMessage(proto.Thresholds{
		ThresholdRed:    device.ThresholdRed,
		ThresholdYellow: device.ThresholdYellow,
		ThresholdGreen:  device.ThresholdGreen,
	})
	if err != nil {
		return nil, err
	}

	return &ClaimResult{
		Device: DeviceSummary{
			ID:      device.ID,
			Name:    device.Name,
			Claimed: device.Claimed,
		},
		Notified: d.push(logger, device.ID, data),
	}, nil
}

// Command persists a configure command and forwards configure and pair
// commands to the device when it's connected. It never waits for the device
// to acknowledge.
func (d *Dispatcher) Command(ctx context.Context, req CommandRequest) (*CommandResult, error) {
	if req.Type != TypeConfigure && req.Type != TypePair {
		return nil, ErrInvalidCommand
	}
	if req.DeviceID == "" {
		return nil, ErrInvalidRequest
	}
	if err := validateThresholds(req.Payload); err != nil {
		return nil, err
	}

	device, err := d.devices.FindByID(ctx, req.DeviceID)
	if err == storage.ErrNotFound {
		return nil, ErrDeviceNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "command: find device")
	}
	if req.OwnerID != "" && !device.IsOwnedBy(req.OwnerID) {
		return nil, ErrNotOwner
	}

	logger := log.WithFields(log.Fields{"device_id": device.ID, "command": req.Type})

	if req.Type == TypeConfigure {
		u := model.DeviceUpdate{
			ThresholdRed:    req.Payload.ThresholdRed,
			ThresholdYellow: req.Payload.ThresholdYellow,
			ThresholdGreen:  req.Payload.ThresholdGreen,
		}
		if !u.IsEmpty() {
			if _, err := d.devices.Update(ctx, device.ID, u); err != nil {
				return nil, errors.Wrap(err, "command: update thresholds")
			}
			logger.Info("command updated thresholds")
		}
	}

	data, err := proto.MarshalNewCommandMessage(proto.MessageType(req.Type), payloadFields(req.Payload))
	if err != nil {
		return nil, err
	}

	if d.push(logger, device.ID, data) {
		return &CommandResult{Delivered: true, Message: MessageDelivered}, nil
	}
	return &CommandResult{Delivered: false, Message: MessageOffline}, nil
}

func (d *Dispatcher) push(logger *log.Entry, deviceID string, data []byte) bool {
	sink, ok := d.sinks.Get(deviceID)
	if !ok {
		logger.Debug("command found no connection for device")
		return false
	}
	if !sink.Push(data) {
		logger.Warn("command could not queue frame for device")
		return false
	}
	return true
}

func validateThresholds(p message.CommandPayload) error {
	for name, v := range map[string]*int{
		"thresholdRed":    p.ThresholdRed,
		"thresholdYellow": p.ThresholdYellow,
		"thresholdGreen":  p.ThresholdGreen,
	} {
		if v != nil && (*v < 0 || *v > 100) {
			return newInvalidRequestError(name + " must be between 0 and 100")
		}
	}
	return nil
}

func payloadFields(p message.CommandPayload) map[string]interface{} {
	fields := make(map[string]interface{})
	if p.ThresholdRed != nil {
		fields["thresholdRed"] = *p.ThresholdRed
	}
	if p.ThresholdYellow != nil {
		fields["thresholdYellow"] = *p.ThresholdYellow
	}
	if p.ThresholdGreen != nil {
		fields["thresholdGreen"] = *p.ThresholdGreen
	}
	if p.PairingCode != nil {
		fields["pairingCode"] = *p.PairingCode
	}
	return fields
}
