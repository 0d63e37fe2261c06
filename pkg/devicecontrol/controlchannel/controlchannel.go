package controlchannel

import (
	"context"
	"sync"
	"time"

	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/controlchannel/websocket"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/proto"
	"github.com/nsyszr/soilcontrol/pkg/storage"
	log "github.com/sirupsen/logrus"
)

type Status int

const (
	StatusConnecting Status = iota
	StatusAuthenticated
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "CONNECTING"
	case StatusAuthenticated:
		return "AUTHENTICATED"
	case StatusClosed:
		return "CLOSED"
	}
	return ""
}

// ControlChannel is the server side of one device connection. Frames are
// handled sequentially by the goroutine reading the inbox; pushes from the
// control plane only touch the outbox.
type ControlChannel struct {
	sync.RWMutex
	ctrl          *Controller
	id            string
	hint          string
	deviceID      string
	status        Status
	lastMessageAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	outboxCh          chan<- *websocket.OutboxMessage
	stopCh            chan struct{}
	closeOnce         sync.Once
	authenticatedCh   chan struct{}
	authenticatedOnce sync.Once
}

// ID returns the connection id.
func (cc *ControlChannel) ID() string {
	return cc.id
}

// Status returns the current state.
func (cc *ControlChannel) Status() Status {
	cc.RLock()
	defer cc.RUnlock()
	return cc.status
}

// DeviceID returns the bound device id or an empty string.
func (cc *ControlChannel) DeviceID() string {
	cc.RLock()
	defer cc.RUnlock()
	return cc.deviceID
}

// LastMessageAt returns the receipt time of the last inbound frame.
func (cc *ControlChannel) LastMessageAt() time.Time {
	cc.RLock()
	defer cc.RUnlock()
	return cc.lastMessageAt
}

// Push queues a frame for the device. It never blocks and fails once the
// channel is closed or the outbox is full.
func (cc *ControlChannel) Push(data []byte) bool {
	if cc.Status() == StatusClosed {
		return false
	}
	return cc.pushBackMessage(websocket.FlagContinue, data)
}

// Close is called when the connection is gone. It releases the registry
// binding unless a newer connection took it over.
func (cc *ControlChannel) Close() {
	cc.closeOnce.Do(func() {
		cc.Lock()
		deviceID := cc.deviceID
		cc.status = StatusClosed
		cc.Unlock()

		close(cc.stopCh)
		cc.cancel()

		if deviceID != "" {
			cc.ctrl.UnregisterSession(cc, deviceID)
		}

		cc.logger().Info("controlchannel closed")
	})
}

func (cc *ControlChannel) processInbox(inbox <-chan *websocket.InboxMessage) {
	for msg := range inbox {
		if _, _, err := cc.HandleMessage(msg.Data); err != nil {
			cc.logger().Errorf("controlchannel handle message error: %v", err)
		}
	}
}

// HandleMessage is called for every data frame received from the device.
// It returns the first frame queued in response.
func (cc *ControlChannel) HandleMessage(data []byte) ([]byte, websocket.Flag, error) {
	if cc.Status() == StatusClosed {
		return cc.continueWithoutMessage()
	}

	msgType, fields, err := proto.UnmarshalMessage(data)
	if err != nil {
		cc.logger().Debugf("controlchannel received invalid frame: %v", err)
		return cc.errorMessage(proto.ErrTextInvalidFormat)
	}

	switch msgType {
	case proto.MessageTypeAuth:
		return cc.handleMessage(fields, cc.authHandler())
	case proto.MessageTypeMeasurement:
		return cc.handleMessage(fields, cc.ensureAuthenticated(cc.measurementHandler()))
	}

	return cc.handleMessage(fields, cc.ensureAuthenticated(cc.unknownMessageHandler()))
}

func (cc *ControlChannel) waitForAuthenticationOrClose(timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-cc.authenticatedCh:
		return
	case <-cc.stopCh:
		return
	case <-timer.C:
		cc.logger().Warn("controlchannel not authenticated in time and closes the connection")
		out, err := proto.MarshalNewErrorMessage(proto.ErrTextAuthTimeout)
		if err != nil {
			out = nil
		}
		cc.pushBackMessage(websocket.FlagCloseGracefully, out)
	}
}

func (cc *ControlChannel) signalAuthenticated() {
	cc.authenticatedOnce.Do(func() {
		close(cc.authenticatedCh)
	})
}

// messageHandler is similar to http.Handler and allows middleware such as
// ensureAuthenticated.
type messageHandler interface {
	Handle(fields map[string]interface{}) ([]byte, websocket.Flag, error)
}

type messageHandlerFunc func(fields map[string]interface{}) ([]byte, websocket.Flag, error)

func (f messageHandlerFunc) Handle(fields map[string]interface{}) ([]byte, websocket.Flag, error) {
	return f(fields)
}

func (cc *ControlChannel) handleMessage(fields map[string]interface{}, h messageHandler) ([]byte, websocket.Flag, error) {
	cc.Lock()
	cc.lastMessageAt = time.Now().Round(time.Second).UTC()
	cc.Unlock()

	return h.Handle(fields)
}

func (cc *ControlChannel) ensureAuthenticated(next messageHandler) messageHandler {
	return messageHandlerFunc(func(fields map[string]interface{}) ([]byte, websocket.Flag, error) {
		if cc.Status() != StatusAuthenticated {
			return cc.errorMessage(proto.ErrTextAuthFirst)
		}
		return next.Handle(fields)
	})
}

func (cc *ControlChannel) authHandler() messageHandlerFunc {
	return messageHandlerFunc(func(fields map[string]interface{}) ([]byte, websocket.Flag, error) {
		authMsg, err := proto.UnmarshalAuthMessage(fields)
		if err != nil {
			return cc.errorMessage(proto.ErrTextInvalidAuth)
		}

		ctx, cancel := cc.storeContext()
		defer cancel()

		device, err := cc.ctrl.store.Devices().FindByID(ctx, authMsg.DeviceID)
		if err == storage.ErrNotFound {
			cc.logger().Warnf("controlchannel rejected unknown device '%s'", authMsg.DeviceID)
			return cc.errorMessage(proto.ErrTextDeviceNotFound)
		} else if err != nil {
			cc.logger().Errorf("controlchannel device lookup failed: %v", err)
			return cc.errorMessage(proto.ErrTextLookupFailed)
		}

		if err := cc.ctrl.auth.Authenticate(device.ID, device.AuthKey, authMsg.Timestamp, authMsg.Signature); err != nil {
			cc.logger().Warnf("controlchannel authentication of device '%s' failed: %v", device.ID, err)
			return cc.errorMessage(proto.ErrTextAuthFailed)
		}

		if err := cc.ctrl.RegisterSession(cc, device.ID); err != nil {
			return cc.continueWithoutMessage()
		}

		out, flag, err := cc.authSuccessMessage(device.Claimed)
		if err != nil || !device.Claimed {
			return out, flag, err
		}

		if _, _, err := cc.configMessage(proto.Thresholds{
			ThresholdRed:    device.ThresholdRed,
			ThresholdYellow: device.ThresholdYellow,
			ThresholdGreen:  device.ThresholdGreen,
		}); err != nil {
			return nil, websocket.FlagTerminate, err
		}
		return out, flag, nil
	})
}

func (cc *ControlChannel) measurementHandler() messageHandlerFunc {
	return messageHandlerFunc(func(fields map[string]interface{}) ([]byte, websocket.Flag, error) {
		msg, err := proto.UnmarshalMeasurementMessage(fields)
		if err != nil {
			return cc.errorMessage(proto.ErrTextInvalidMeasurement)
		}

		deviceID := cc.DeviceID()
		if msg.DeviceID != deviceID {
			cc.logger().Warnf("controlchannel received measurement for foreign device '%s'", msg.DeviceID)
			return cc.errorMessage(proto.ErrTextDeviceIDMismatch)
		}

		ctx, cancel := cc.storeContext()
		defer cancel()

		// The claim state can change after authentication.
		device, err := cc.ctrl.store.Devices().FindByID(ctx, deviceID)
		if err == storage.ErrNotFound {
			return cc.errorMessage(proto.ErrTextNotClaimed)
		} else if err != nil {
			cc.logger().Errorf("controlchannel device lookup failed: %v", err)
			return cc.errorMessage(proto.ErrTextLookupFailed)
		}
		if !device.Claimed {
			return cc.errorMessage(proto.ErrTextNotClaimed)
		}

		if _, err := cc.ctrl.recorder.Record(ctx, deviceID, msg.MoistureLevel, msg.Timestamp); err != nil {
			cc.logger().Errorf("controlchannel failed to store measurement: %v", err)
			return cc.errorMessage(proto.ErrTextStoreFailed)
		}

		return cc.ackMessage()
	})
}

func (cc *ControlChannel) unknownMessageHandler() messageHandlerFunc {
	return messageHandlerFunc(func(fields map[string]interface{}) ([]byte, websocket.Flag, error) {
		return cc.errorMessage(proto.ErrTextUnknownType)
	})
}

func (cc *ControlChannel) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(cc.ctx, cc.ctrl.storeTimeout)
}

func (cc *ControlChannel) logger() *log.Entry {
	cc.RLock()
	defer cc.RUnlock()
	return log.WithFields(log.Fields{
		"connection_id": cc.id,
		"device_id":     cc.deviceID,
		"device_hint":   cc.hint,
	})
}

func (cc *ControlChannel) terminateAndLogError(message string, err error) ([]byte, websocket.Flag, error) {
	cc.logger().Errorf("controlchannel terminates: %s: %v", message, err)
	cc.pushBackMessage(websocket.FlagTerminate, nil)
	return nil, websocket.FlagTerminate, err
}

func (cc *ControlChannel) queue(out []byte, err error) ([]byte, websocket.Flag, error) {
	// Marshalling fixed structs should never fail. If it does, the
	// connection is terminated.
	if err != nil {
		return cc.terminateAndLogError("could not marshal message", err)
	}
	if !cc.pushBackMessage(websocket.FlagContinue, out) {
		cc.logger().Warn("controlchannel outbox is full, frame dropped")
	}
	return out, websocket.FlagContinue, nil
}

func (cc *ControlChannel) welcomeMessage() ([]byte, websocket.Flag, error) {
	return cc.queue(proto.MarshalNewWelcomeMessage())
}

func (cc *ControlChannel) authSuccessMessage(claimed bool) ([]byte, websocket.Flag, error) {
	return cc.queue(proto.MarshalNewAuthSuccessMessage(claimed))
}

func (cc *ControlChannel) configMessage(th proto.Thresholds) ([]byte, websocket.Flag, error) {
	return cc.queue(proto.MarshalNewConfigMessage(th))
}

func (cc *ControlChannel) ackMessage() ([]byte, websocket.Flag, error) {
	return cc.queue(proto.MarshalNewAckMessage())
}

func (cc *ControlChannel) errorMessage(text string) ([]byte, websocket.Flag, error) {
	return cc.queue(proto.MarshalNewErrorMessage(text))
}

func (cc *ControlChannel) continueWithoutMessage() ([]byte, websocket.Flag, error) {
	return nil, websocket.FlagContinue, nil
}

func (cc *ControlChannel) pushBackMessage(flag websocket.Flag, data []byte) bool {
	select {
	case cc.outboxCh <- websocket.NewOutboxMessage(flag, data):
		return true
	default:
		return false // Buffer is full
	}
}
