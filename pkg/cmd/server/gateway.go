package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/soilcontrol/config"
	"github.com/nsyszr/soilcontrol/pkg/api"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/command"
	commandnatsio "github.com/nsyszr/soilcontrol/pkg/devicecontrol/command/natsio"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/controlchannel"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/registry"
	"github.com/nsyszr/soilcontrol/pkg/events"
	"github.com/nsyszr/soilcontrol/pkg/events/influxdb"
	"github.com/nsyszr/soilcontrol/pkg/events/mqtt"
	eventsnatsio "github.com/nsyszr/soilcontrol/pkg/events/natsio"
	"github.com/nsyszr/soilcontrol/pkg/signature"
	"github.com/nsyszr/soilcontrol/pkg/storage"
	"github.com/nsyszr/soilcontrol/pkg/telemetry"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type gatewayServer struct {
	c      *config.Config
	quitCh chan bool
	doneCh chan bool

	store      storage.Interface
	nc         *nats.Conn
	subscriber *commandnatsio.Subscriber
	publishers events.Multi
	closers    []func()
	e          *echo.Echo
}

func newGatewayServer(ctx context.Context, c *config.Config) (*gatewayServer, error) {
	if err := c.ValidateGateway(); err != nil {
		return nil, err
	}

	s := &gatewayServer{
		c:      c,
		quitCh: make(chan bool),
		doneCh: make(chan bool),
	}

	store, err := OpenStore(ctx, c)
	if err != nil {
		return nil, err
	}
	s.store = store

	if c.NATSServerURL != "" {
		if err := s.connectNATS(); err != nil {
			s.Close()
			return nil, err
		}
	}

	if c.MQTTBrokerURL != "" {
		p, err := mqtt.Connect(mqtt.Config{
			BrokerURL:   c.MQTTBrokerURL,
			ClientID:    c.MQTTClientID,
			Username:    c.MQTTUsername,
			Password:    c.MQTTPassword,
			TopicPrefix: c.MQTTTopicPrefix,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.publishers = append(s.publishers, p)
		s.closers = append(s.closers, p.Close)
	}

	if c.InfluxDBURL != "" {
		p, err := influxdb.Connect(ctx, influxdb.Config{
			URL:    c.InfluxDBURL,
			Token:  c.InfluxDBToken,
			Org:    c.InfluxDBOrg,
			Bucket: c.InfluxDBBucket,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.publishers = append(s.publishers, p)
		s.closers = append(s.closers, p.Close)
	}

	return s, nil
}

func (s *gatewayServer) connectNATS() error {
	nc, err := nats.Connect(s.c.NATSServerURL,
		nats.Name("soilcontrol-gateway"),
		nats.DrainTimeout(shutdownTimeout),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			log.Errorf("nats async error: %v", err)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warnf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("nats reconnected to %s", nc.ConnectedUrl())
		}))
	if err != nil {
		return err
	}

	s.nc = nc
	s.publishers = append(s.publishers, eventsnatsio.NewPublisher(nc, s.c.NATSSubjectPrefix))
	return nil
}

func (s *gatewayServer) Serve() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(logger())
	s.e = e

	scheme, err := signature.ParseScheme(s.c.SignatureScheme)
	if err != nil {
		log.Fatal(err)
	}
	codec := signature.NewCodec(scheme, s.c.SignatureMaxSkew)

	// Create the controller
	reg := registry.New()
	sink := telemetry.NewSink(s.store.Measurements(), s.publishers)
	ctrl := controlchannel.NewController(s.store, reg, codec, sink, s.publishers, controlchannel.Options{
		AuthTimeout: s.c.AuthTimeout,
		OutboxSize:  s.c.OutboxSize,
	})
	disp := command.NewDispatcher(s.store.Devices(), reg)

	if s.nc != nil {
		s.subscriber = commandnatsio.NewSubscriber(s.nc, s.c.NATSSubjectPrefix, disp)
		if err := s.subscriber.Subscribe(); err != nil {
			log.Fatal(err)
		}
	}

	// Register devicecontrol endpoint
	devicecontrol.NewHandler(ctrl).RegisterRoutes(e)

	// Register API endpoints
	api.NewHandler(s.store, disp, reg, s.nc, api.Config{
		JWTSecret:     s.c.JWTSecret,
		SubjectPrefix: s.c.NATSSubjectPrefix,
	}).RegisterRoutes(e)

	go func() {
		log.WithFields(log.Fields{
			"host":             s.c.BindHost,
			"port":             s.c.BindPort,
			"storage":          s.c.StorageDriver,
			"signature_scheme": scheme,
		}).Info("Starting server")

		if err := e.Start(fmt.Sprintf("%s:%d", s.c.BindHost, s.c.BindPort)); err != nil {
			log.Info("Shutting down the server: ", err)
		}
	}()

	// Wait until receiving the quit signal
	<-s.quitCh
	log.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by the HTTP server,
	// they end when the process exits.
	if err := e.Shutdown(ctx); err != nil {
		log.Error(err)
	}

	// We've done!
	s.doneCh <- true
}

func (s *gatewayServer) Shutdown() {
	if s.subscriber != nil {
		s.subscriber.Unsubscribe()
	}

	// Send the quit signal to the Serve() routine
	s.quitCh <- true

	select {
	case <-s.doneCh:
		log.Info("Shutdown server successful")
	case <-time.After(shutdownTimeout):
		log.Error("Shutdown server failed")
	}
}

// Close releases the connections in reverse order of creation.
func (s *gatewayServer) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			log.Warnf("nats drain failed: %v", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Warnf("store close failed: %v", err)
		}
	}
}

func RunServeGateway(c *config.Config) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		s, err := newGatewayServer(context.Background(), c)
		if err != nil {
			log.Error("failed to create new server instance: ", err)
			os.Exit(1)
		}
		defer s.Close()

		go s.Serve()

		// Wait for interrupt signal to gracefully shutdown the server
		quitCh := make(chan os.Signal, 1)
		signal.Notify(quitCh, os.Interrupt, syscall.SIGTERM)
		<-quitCh

		// Shutdown the server
		s.Shutdown()
	}
}
