package natsio

import (
	"encoding/json"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/soilcontrol/pkg/client"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/message"
	"github.com/pkg/errors"
)

type Config struct {
	URL            string
	SubjectPrefix  string
	DefaultTimeout time.Duration
}

// Requester is the part of a NATS connection the client needs.
type Requester interface {
	Request(subj string, data []byte, timeout time.Duration) (*nats.Msg, error)
}

type natsClient struct {
	cfg *Config
	nc  Requester
	// closer is nil when the connection is owned by the caller.
	closer func()
}

// New connects to NATS and returns a control plane client.
func New(cfg *Config) (client.Interface, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "natsio: connect")
	}
	c := newClient(cfg, nc)
	c.closer = nc.Close
	return c, nil
}

// NewWithConn returns a client using an existing connection.
func NewWithConn(cfg *Config, nc Requester) client.Interface {
	return newClient(cfg, nc)
}

func newClient(cfg *Config, nc Requester) *natsClient {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 10 * time.Second
	}
	return &natsClient{
		cfg: cfg,
		nc:  nc,
	}
}

func (c *natsClient) Command(req *message.CommandRequest) (*message.Reply, error) {
	return c.request(c.cfg.SubjectPrefix+".command", req)
}

func (c *natsClient) Claim(req *message.ClaimRequest) (*message.Reply, error) {
	return c.request(c.cfg.SubjectPrefix+".claim", req)
}

func (c *natsClient) Close() {
	if c.closer != nil {
		c.closer()
	}
}

func (c *natsClient) request(subj string, v interface{}) (*message.Reply, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	msg, err := c.nc.Request(subj, data, c.cfg.DefaultTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "natsio: request %s", subj)
	}

	var rep message.Reply
	if err := json.Unmarshal(msg.Data, &rep); err != nil {
		return nil, errors.Wrap(err, "natsio: invalid reply")
	}
	return &rep, nil
}
