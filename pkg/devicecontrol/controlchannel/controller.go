package controlchannel

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/controlchannel/websocket"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/registry"
	"github.com/nsyszr/soilcontrol/pkg/events"
	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/nsyszr/soilcontrol/pkg/storage"
	log "github.com/sirupsen/logrus"
)

// Authenticator verifies the signed auth frame of a device.
type Authenticator interface {
	Authenticate(deviceID, authKey, timestamp, signature string) error
}

// MeasurementRecorder persists measurements of authenticated devices.
type MeasurementRecorder interface {
	Record(ctx context.Context, deviceID string, moistureLevel int, ts time.Time) (*model.Measurement, error)
}

type Options struct {
	// AuthTimeout closes connections that did not authenticate in time.
	// Zero disables the timeout.
	AuthTimeout time.Duration
	// OutboxSize is the number of frames buffered per connection.
	OutboxSize int
	// StoreTimeout bounds every store call made for a frame.
	StoreTimeout time.Duration
}

const (
	DefaultOutboxSize   = 64
	DefaultStoreTimeout = 5 * time.Second
)

type Controller struct {
	store        storage.Interface
	registry     *registry.Registry
	auth         Authenticator
	recorder     MeasurementRecorder
	publisher    events.Publisher
	authTimeout  time.Duration
	outboxSize   int
	storeTimeout time.Duration
}

func NewController(store storage.Interface, reg *registry.Registry, auth Authenticator,
	recorder MeasurementRecorder, publisher events.Publisher, opts Options) *Controller {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = DefaultOutboxSize
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}

	return &Controller{
		store:        store,
		registry:     reg,
		auth:         auth,
		recorder:     recorder,
		publisher:    publisher,
		authTimeout:  opts.AuthTimeout,
		outboxSize:   opts.OutboxSize,
		storeTimeout: opts.StoreTimeout,
	}
}

// Registry returns the live connection registry.
func (ctrl *Controller) Registry() *registry.Registry {
	return ctrl.registry
}

// NewControlChannel creates a control channel that writes its frames to
// outboxCh. The welcome frame is queued immediately.
func (ctrl *Controller) NewControlChannel(outboxCh chan<- *websocket.OutboxMessage, hint string) *ControlChannel {
	ctx, cancel := context.WithCancel(context.Background())
	cc := &ControlChannel{
		ctrl:            ctrl,
		id:              uuid.New().String(),
		hint:            hint,
		status:          StatusConnecting,
		ctx:             ctx,
		cancel:          cancel,
		outboxCh:        outboxCh,
		stopCh:          make(chan struct{}),
		authenticatedCh: make(chan struct{}),
	}

	cc.logger().Info("controlchannel established")

	if _, _, err := cc.welcomeMessage(); err != nil {
		cc.logger().Errorf("controlchannel could not send welcome message: %v", err)
	}

	// Start the go routine which ensures that authentication happens within
	// given period.
	if ctrl.authTimeout > 0 {
		go cc.waitForAuthenticationOrClose(ctrl.authTimeout)
	}

	return cc
}

// Serve runs a device connection until it's closed by either side. The
// websocket handshake must be completed already.
func (ctrl *Controller) Serve(conn net.Conn, hint string) {
	driver := websocket.NewDriver(conn, ctrl.outboxSize)
	cc := ctrl.NewControlChannel(driver.Outbox, hint)
	driver.Start()

	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		cc.processInbox(driver.Inbox)
	}()

	<-driver.Terminated()

	cc.Close()
	if err := conn.Close(); err != nil {
		log.Debugf("controller close connection error: %v", err)
	}
	driver.Wait()
	<-doneCh
}
