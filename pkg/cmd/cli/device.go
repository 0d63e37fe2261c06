package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/nsyszr/soilcontrol/config"
	"github.com/nsyszr/soilcontrol/pkg/client"
	"github.com/nsyszr/soilcontrol/pkg/client/natsio"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/message"
	"github.com/nsyszr/soilcontrol/pkg/signature"
	"github.com/nsyszr/soilcontrol/pkg/simulator"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type DeviceHandler struct {
	c *config.Config
}

func newDeviceHandler(c *config.Config) *DeviceHandler {
	return &DeviceHandler{c: c}
}

func (h *DeviceHandler) scheme(cmd *cobra.Command) signature.Scheme {
	name, _ := cmd.Flags().GetString("scheme")
	if name == "" {
		name = h.c.SignatureScheme
	}
	scheme, err := signature.ParseScheme(name)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	return scheme
}

// AuthFrame returns the auth frame a device sends for the given timestamp.
func AuthFrame(scheme signature.Scheme, deviceID, authKey, timestamp string) map[string]string {
	return map[string]string{
		"type":      "auth",
		"deviceId":  deviceID,
		"timestamp": timestamp,
		"signature": signature.Sign(scheme, deviceID, authKey, timestamp),
	}
}

// Sign prints a signed auth frame.
func (h *DeviceHandler) Sign(cmd *cobra.Command, args []string) {
	if len(args) < 2 {
		fmt.Println(cmd.UsageString())
		os.Exit(2)
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	if len(args) > 2 {
		timestamp = args[2]
	}

	printJSON(cmd, AuthFrame(h.scheme(cmd), args[0], args[1], timestamp))
}

// Simulate runs a simulated device until interrupted.
func (h *DeviceHandler) Simulate(cmd *cobra.Command, args []string) {
	if len(args) < 2 {
		fmt.Println(cmd.UsageString())
		os.Exit(2)
	}

	url, _ := cmd.Flags().GetString("url")
	if url == "" {
		url = fmt.Sprintf("ws://localhost:%d/websocket", h.c.BindPort)
	}
	interval, _ := cmd.Flags().GetDuration("interval")

	d := simulator.NewDevice(simulator.Config{
		URL:      url,
		DeviceID: args[0],
		AuthKey:  args[1],
		Scheme:   h.scheme(cmd),
		Interval: interval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quitCh := make(chan os.Signal, 1)
		signal.Notify(quitCh, os.Interrupt)
		<-quitCh
		cancel()
	}()

	log.WithFields(log.Fields{
		"device_id": args[0],
		"url":       url,
		"interval":  interval,
	}).Info("Starting device simulation")

	if err := d.Run(ctx); err != nil && err != context.Canceled {
		log.Error(err)
		os.Exit(1)
	}
}

// Configure sends new thresholds to a device.
func (h *DeviceHandler) Configure(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		fmt.Println(cmd.UsageString())
		os.Exit(2)
	}

	req := &message.CommandRequest{
		Type:     "configure",
		DeviceID: args[0],
	}
	for name, target := range map[string]**int{
		"red":    &req.Payload.ThresholdRed,
		"yellow": &req.Payload.ThresholdYellow,
		"green":  &req.Payload.ThresholdGreen,
	} {
		if cmd.Flags().Changed(name) {
			v, _ := cmd.Flags().GetInt(name)
			*target = &v
		}
	}

	h.request(cmd, func(c client.Interface) (*message.Reply, error) {
		return c.Command(req)
	})
}

// Pair forwards a pairing code to a device.
func (h *DeviceHandler) Pair(cmd *cobra.Command, args []string) {
	if len(args) < 2 {
		fmt.Println(cmd.UsageString())
		os.Exit(2)
	}

	code := args[1]
	req := &message.CommandRequest{
		Type:     "pair",
		DeviceID: args[0],
		Payload:  message.CommandPayload{PairingCode: &code},
	}

	h.request(cmd, func(c client.Interface) (*message.Reply, error) {
		return c.Command(req)
	})
}

// Claim assigns a device to a user.
func (h *DeviceHandler) Claim(cmd *cobra.Command, args []string) {
	if len(args) < 2 {
		fmt.Println(cmd.UsageString())
		os.Exit(2)
	}

	userID, _ := cmd.Flags().GetString("user")
	name, _ := cmd.Flags().GetString("name")
	req := &message.ClaimRequest{
		DeviceID: args[0],
		AuthKey:  args[1],
		Name:     name,
		UserID:   userID,
	}

	h.request(cmd, func(c client.Interface) (*message.Reply, error) {
		return c.Claim(req)
	})
}

func (h *DeviceHandler) request(cmd *cobra.Command, fn func(c client.Interface) (*message.Reply, error)) {
	if h.c.NATSServerURL == "" {
		fmt.Println("NATS_URL is not configured")
		os.Exit(2)
	}

	c, err := natsio.New(&natsio.Config{
		URL:           h.c.NATSServerURL,
		SubjectPrefix: h.c.NATSSubjectPrefix,
	})
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
	defer c.Close()

	rep, err := fn(c)
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}

	printJSON(cmd, rep)
	if rep.Status != message.ReplyStatusSuccess {
		os.Exit(1)
	}
}

func printJSON(cmd *cobra.Command, v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
}
