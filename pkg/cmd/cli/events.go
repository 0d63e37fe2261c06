package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/nats-io/nats.go"
	"github.com/nsyszr/soilcontrol/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type EventsHandler struct {
	c *config.Config
}

func newEventsHandler(c *config.Config) *EventsHandler {
	return &EventsHandler{c: c}
}

// EventsSubject returns the wildcard subject of all gateway events.
func EventsSubject(prefix string) string {
	return prefix + ".events.>"
}

// Watch prints every gateway event until interrupted.
func (h *EventsHandler) Watch(cmd *cobra.Command, args []string) {
	if h.c.NATSServerURL == "" {
		fmt.Println("NATS_URL is not configured")
		os.Exit(2)
	}

	nc, err := nats.Connect(h.c.NATSServerURL)
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
	defer nc.Close()

	subj := EventsSubject(h.c.NATSSubjectPrefix)
	if _, err := nc.Subscribe(subj, func(m *nats.Msg) {
		fmt.Fprintf(cmd.OutOrStdout(), "subject: %s, message: %s\n", m.Subject, string(m.Data))
	}); err != nil {
		log.Error(err)
		os.Exit(1)
	}
	log.Infof("Watching %s", subj)

	// Wait for interrupt signal
	quitCh := make(chan os.Signal, 1)
	signal.Notify(quitCh, os.Interrupt)
	<-quitCh
}
