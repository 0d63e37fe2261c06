package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds
	defaultKeepAlive         = 60 * time.Second
	qosAtLeastOnce           = 1
)

// Client is the part of the paho client used for publishing.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// Config contains the broker settings.
type Config struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Publisher mirrors device events to MQTT topics
// <prefix>/<deviceId>/status and <prefix>/<deviceId>/measurement.
type Publisher struct {
	client Client
	prefix string
	closer func()

	// onError receives failed or timed out deliveries.
	onError func(topic string, err error)
}

// NewPublisher wraps an already connected client.
func NewPublisher(client Client, prefix string) *Publisher {
	return &Publisher{
		client:  client,
		prefix:  prefix,
		onError: logPublishError,
	}
}

// Connect establishes the broker connection with auto-reconnect enabled.
func Connect(cfg Config) (*Publisher, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warnf("mqtt connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		log.WithField("broker", cfg.BrokerURL).Info("mqtt connected")
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("mqtt: connect timeout after %v", defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(err, "mqtt: connect failed")
	}

	p := NewPublisher(client, cfg.TopicPrefix)
	p.closer = func() { client.Disconnect(defaultDisconnectQuiesce) }
	return p, nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.closer != nil {
		p.closer()
	}
}

type statusPayload struct {
	DeviceID  string    `json:"deviceId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type measurementPayload struct {
	ID            string    `json:"id"`
	DeviceID      string    `json:"deviceId"`
	MoistureLevel int       `json:"moistureLevel"`
	Timestamp     time.Time `json:"timestamp"`
}

// StatusTopic returns the retained status topic of a device.
func (p *Publisher) StatusTopic(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", p.prefix, deviceID)
}

// MeasurementTopic returns the measurement topic of a device.
func (p *Publisher) MeasurementTopic(deviceID string) string {
	return fmt.Sprintf("%s/%s/measurement", p.prefix, deviceID)
}

func (p *Publisher) PublishDeviceStatus(ev *model.StatusEvent) error {
	return p.publish(p.StatusTopic(ev.DeviceID), true, &statusPayload{
		DeviceID:  ev.DeviceID,
		Status:    string(ev.Status),
		Timestamp: ev.Timestamp,
	})
}

func (p *Publisher) PublishMeasurement(m *model.Measurement) error {
	return p.publish(p.MeasurementTopic(m.DeviceID), false, &measurementPayload{
		ID:            m.ID,
		DeviceID:      m.DeviceID,
		MoistureLevel: m.MoistureLevel,
		Timestamp:     m.Timestamp,
	})
}

func logPublishError(topic string, err error) {
	log.WithField("topic", topic).Warnf("mqtt publish failed: %v", err)
}

// publish hands the payload to the client and returns without waiting for
// the broker. Delivery is watched in the background.
func (p *Publisher) publish(topic string, retained bool, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	token := p.client.Publish(topic, qosAtLeastOnce, retained, payload)
	go p.watch(topic, token)
	return nil
}

func (p *Publisher) watch(topic string, token pahomqtt.Token) {
	timer := time.NewTimer(defaultPublishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			p.onError(topic, errors.Wrapf(err, "mqtt: publish to '%s' failed", topic))
		}
	case <-timer.C:
		p.onError(topic, fmt.Errorf("mqtt: publish to '%s' timed out", topic))
	}
}
