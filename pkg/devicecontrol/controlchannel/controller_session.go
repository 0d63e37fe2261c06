package controlchannel

import (
	"time"

	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var errChannelClosed = errors.New("controlchannel: closed")

// RegisterSession binds the control channel to an authenticated device. A
// previous binding of the device is replaced. If the channel was bound to
// another device before, that binding is released.
func (ctrl *Controller) RegisterSession(cc *ControlChannel, deviceID string) error {
	cc.Lock()
	if cc.status == StatusClosed {
		cc.Unlock()
		return errChannelClosed
	}
	prev := cc.deviceID
	cc.deviceID = deviceID
	cc.status = StatusAuthenticated
	cc.Unlock()

	if prev != "" && prev != deviceID {
		ctrl.UnregisterSession(cc, prev)
	}

	ctrl.registry.Set(deviceID, cc)

	// Close may have run between the status check and Set. In that case it
	// did not see the new binding, so it's released here.
	if cc.Status() == StatusClosed {
		ctrl.registry.CompareAndDelete(deviceID, cc)
		return errChannelClosed
	}

	cc.signalAuthenticated()

	log.WithFields(log.Fields{
		"connection_id": cc.ID(),
		"device_id":     deviceID,
	}).Info("controller registered device connection")

	ctrl.publishDeviceStatus(deviceID, cc.ID(), model.DeviceStatusConnected)
	return nil
}

// UnregisterSession releases the binding of deviceID if it still points to
// cc. DISCONNECTED is only published when the binding was removed.
func (ctrl *Controller) UnregisterSession(cc *ControlChannel, deviceID string) {
	if !ctrl.registry.CompareAndDelete(deviceID, cc) {
		log.WithFields(log.Fields{
			"connection_id": cc.ID(),
			"device_id":     deviceID,
		}).Debug("controller kept device binding of newer connection")
		return
	}

	log.WithFields(log.Fields{
		"connection_id": cc.ID(),
		"device_id":     deviceID,
	}).Info("controller removed device connection")

	ctrl.publishDeviceStatus(deviceID, cc.ID(), model.DeviceStatusDisconnected)
}

func now() time.Time {
	return time.Now().UTC()
}
