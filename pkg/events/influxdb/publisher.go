package influxdb

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/nsyszr/soilcontrol/pkg/model"
	log "github.com/sirupsen/logrus"
)

const (
	defaultPingTimeout = 5 * time.Second

	measurementSoilMoisture = "soil_moisture"
	measurementDeviceStatus = "device_status"
)

// PointWriter is the part of the non-blocking write API used here.
type PointWriter interface {
	WritePoint(point *write.Point)
}

// Config contains the InfluxDB settings.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Publisher writes measurements and connectivity changes as points.
type Publisher struct {
	w      PointWriter
	closer func()
}

func NewPublisher(w PointWriter) *Publisher {
	return &Publisher{w: w}
}

// Connect creates the client, verifies it with a ping and returns a
// publisher using the batching write API.
func Connect(ctx context.Context, cfg Config) (*Publisher, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb: ping failed: %w", err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("influxdb: server not healthy")
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			log.Errorf("influxdb write failed: %v", err)
		}
	}()

	p := NewPublisher(writeAPI)
	p.closer = func() {
		writeAPI.Flush()
		client.Close()
	}
	return p, nil
}

// Close flushes pending points and closes the client.
func (p *Publisher) Close() {
	if p.closer != nil {
		p.closer()
	}
}

func (p *Publisher) PublishDeviceStatus(ev *model.StatusEvent) error {
	connected := 0
	if ev.Status == model.DeviceStatusConnected {
		connected = 1
	}

	p.w.WritePoint(write.NewPoint(
		measurementDeviceStatus,
		map[string]string{"device_id": ev.DeviceID},
		map[string]interface{}{"connected": connected},
		ev.Timestamp,
	))
	return nil
}

func (p *Publisher) PublishMeasurement(m *model.Measurement) error {
	p.w.WritePoint(write.NewPoint(
		measurementSoilMoisture,
		map[string]string{"device_id": m.DeviceID},
		map[string]interface{}{"moisture_level": m.MoistureLevel},
		m.Timestamp,
	))
	return nil
}
