package controlchannel

import (
	"github.com/nsyszr/soilcontrol/pkg/model"
	log "github.com/sirupsen/logrus"
)

func (ctrl *Controller) publishDeviceStatus(deviceID, connectionID string, status model.DeviceStatus) {
	evt := &model.StatusEvent{
		DeviceID:     deviceID,
		ConnectionID: connectionID,
		Status:       status,
		Timestamp:    now(),
	}

	if err := ctrl.publisher.PublishDeviceStatus(evt); err != nil {
		log.Errorf("controller could not publish device status: %v", err)
	}
}
