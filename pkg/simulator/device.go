package simulator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/nsyszr/soilcontrol/pkg/signature"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	URL            string
	DeviceID       string
	AuthKey        string
	Scheme         signature.Scheme
	Interval       time.Duration
	ReconnectDelay time.Duration
	// Level returns the next moisture level. It defaults to a random level.
	Level func() int
}

// Thresholds as last received from the gateway.
type Thresholds struct {
	Red    int
	Yellow int
	Green  int
}

// Zone names the moisture zone of level.
func (th Thresholds) Zone(level int) string {
	switch {
	case level <= th.Red:
		return "DRY (RED)"
	case level <= th.Yellow:
		return "LOW (YELLOW)"
	case level <= th.Green:
		return "GOOD (GREEN)"
	}
	return "WET (BLUE)"
}

// Device simulates a soil moisture probe. It authenticates after the
// welcome frame and sends measurements at the configured interval once
// claimed.
type Device struct {
	sync.RWMutex
	cfg           Config
	authenticated bool
	claimed       bool
	thresholds    Thresholds
	pairingCode   string
}

func NewDevice(cfg Config) *Device {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.Level == nil {
		cfg.Level = func() int { return rand.Intn(101) }
	}
	return &Device{cfg: cfg}
}

func (d *Device) Claimed() bool {
	d.RLock()
	defer d.RUnlock()
	return d.claimed
}

func (d *Device) Thresholds() Thresholds {
	d.RLock()
	defer d.RUnlock()
	return d.thresholds
}

func (d *Device) PairingCode() string {
	d.RLock()
	defer d.RUnlock()
	return d.pairingCode
}

// Run connects and reconnects until ctx is done.
func (d *Device) Run(ctx context.Context) error {
	for {
		if err := d.RunOnce(ctx); err != nil {
			d.logger().Warnf("simulator connection lost: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.cfg.ReconnectDelay):
		}
	}
}

// RunOnce serves a single connection until it fails or ctx is done.
func (d *Device) RunOnce(ctx context.Context) error {
	c, err := Dial(ctx, d.cfg.URL, d.cfg.DeviceID, d.cfg.AuthKey, d.cfg.Scheme)
	if err != nil {
		return err
	}
	defer c.Close()

	d.Lock()
	d.authenticated = false
	d.Unlock()

	framesCh := make(chan map[string]interface{})
	errCh := make(chan error, 1)
	doneCh := make(chan struct{})
	defer close(doneCh)
	go func() {
		for {
			msg, err := c.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			select {
			case framesCh <- msg:
			case <-doneCh:
				return
			}
		}
	}()

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case msg := <-framesCh:
			if err := d.handleFrame(c, msg); err != nil {
				return err
			}
		case <-ticker.C:
			if err := d.sendMeasurement(c); err != nil {
				return err
			}
		}
	}
}

func (d *Device) handleFrame(c *Client, msg map[string]interface{}) error {
	msgType, _ := msg["type"].(string)
	logger := d.logger()

	switch msgType {
	case "welcome":
		logger.Infof("simulator received welcome: %v", msg["message"])
		return c.Authenticate(time.Now())
	case "auth_success":
		claimed, _ := msg["claimed"].(bool)
		d.Lock()
		d.authenticated = true
		d.claimed = claimed
		d.Unlock()
		logger.Infof("simulator authenticated, claimed: %t", claimed)
		return d.sendMeasurement(c)
	case "claimed":
		d.Lock()
		d.claimed = true
		d.applyThresholds(msg)
		d.Unlock()
		logger.Info("simulator device has been claimed")
		return d.sendMeasurement(c)
	case "config", "configure":
		d.Lock()
		d.applyThresholds(msg)
		d.Unlock()
		th := d.Thresholds()
		logger.Infof("simulator thresholds red=%d yellow=%d green=%d", th.Red, th.Yellow, th.Green)
	case "pair":
		code, _ := msg["pairingCode"].(string)
		d.Lock()
		d.pairingCode = code
		d.Unlock()
		logger.Infof("simulator received pairing code %s", code)
	case "ack":
	case "error":
		logger.Warnf("simulator received error: %v", msg["message"])
	default:
		logger.Debugf("simulator ignored frame of type '%s'", msgType)
	}
	return nil
}

// applyThresholds keeps thresholds missing in msg. The caller holds the
// lock.
func (d *Device) applyThresholds(msg map[string]interface{}) {
	if v, ok := msg["thresholdRed"].(float64); ok {
		d.thresholds.Red = int(v)
	}
	if v, ok := msg["thresholdYellow"].(float64); ok {
		d.thresholds.Yellow = int(v)
	}
	if v, ok := msg["thresholdGreen"].(float64); ok {
		d.thresholds.Green = int(v)
	}
}

func (d *Device) sendMeasurement(c *Client) error {
	d.RLock()
	ready := d.authenticated && d.claimed
	th := d.thresholds
	d.RUnlock()

	if !ready {
		d.logger().Debug("simulator skips measurement, device is not authenticated or not claimed")
		return nil
	}

	level := d.cfg.Level()
	d.logger().Infof("simulator sends moisture level %d%% (%s)", level, th.Zone(level))
	return c.SendMeasurement(level, time.Now())
}

func (d *Device) logger() *log.Entry {
	return log.WithField("device_id", d.cfg.DeviceID)
}
