// Package simulator implements the device side of the websocket protocol.
package simulator

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/nsyszr/soilcontrol/pkg/signature"
	"github.com/pkg/errors"
)

// Client is a device connection. ReadMessage must not be called
// concurrently, sends are safe for concurrent use.
type Client struct {
	conn     net.Conn
	rw       io.ReadWriter
	writeMu  sync.Mutex
	deviceID string
	authKey  string
	scheme   signature.Scheme
}

// isoTimestamp matches the timestamps device firmware produces.
const isoTimestamp = "2006-01-02T15:04:05.000Z07:00"

type readWriter struct {
	io.Reader
	io.Writer
}

// Dial opens the websocket. The device id is sent as query hint.
func Dial(ctx context.Context, rawURL, deviceID, authKey string, scheme signature.Scheme) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "simulator: invalid url")
	}
	q := u.Query()
	q.Set("deviceId", deviceID)
	u.RawQuery = q.Encode()

	conn, br, _, err := ws.Dial(ctx, u.String())
	if err != nil {
		return nil, errors.Wrap(err, "simulator: dial")
	}

	c := &Client{
		conn:     conn,
		rw:       conn,
		deviceID: deviceID,
		authKey:  authKey,
		scheme:   scheme,
	}
	// Frames sent right after the handshake may already sit in the
	// handshake reader.
	if br != nil {
		c.rw = &readWriter{Reader: io.MultiReader(br, conn), Writer: conn}
	}
	return c, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ReadMessage returns the next JSON frame of the server.
func (c *Client) ReadMessage() (map[string]interface{}, error) {
	data, err := wsutil.ReadServerText(c.rw)
	if err != nil {
		return nil, err
	}

	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "simulator: invalid frame")
	}
	return out, nil
}

// ReadMessageTimeout is ReadMessage with a read deadline.
func (c *Client) ReadMessageTimeout(d time.Duration) (map[string]interface{}, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		return nil, err
	}
	defer c.conn.SetReadDeadline(time.Time{})
	return c.ReadMessage()
}

// Authenticate sends a signed auth frame for ts.
func (c *Client) Authenticate(ts time.Time) error {
	timestamp := ts.UTC().Format(isoTimestamp)
	return c.Send(map[string]interface{}{
		"type":      "auth",
		"deviceId":  c.deviceID,
		"timestamp": timestamp,
		"signature": signature.Sign(c.scheme, c.deviceID, c.authKey, timestamp),
	})
}

// SendMeasurement sends a measurement frame. A zero ts is omitted.
func (c *Client) SendMeasurement(level int, ts time.Time) error {
	msg := map[string]interface{}{
		"type":          "measurement",
		"deviceId":      c.deviceID,
		"moistureLevel": level,
	}
	if !ts.IsZero() {
		msg["timestamp"] = ts.UTC().Format(isoTimestamp)
	}
	return c.Send(msg)
}

// Send writes v as JSON text frame.
func (c *Client) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteClientText(c.conn, data)
}
