package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/labstack/echo/v4"
	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/soilcontrol/pkg/api/resource"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/message"
	log "github.com/sirupsen/logrus"
)

const ownerLookupTimeout = 5 * time.Second

// realtimeEventsHandler streams the device events of the caller's devices
// to a websocket client until the client goes away.
func (h *Handler) realtimeEventsHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.nc == nil {
			return errorJSON(c, http.StatusServiceUnavailable, "Realtime events are not available")
		}

		user := userID(c)

		conn, _, _, err := ws.UpgradeHTTP(c.Request(), c.Response())
		if err != nil {
			log.Error("api: failed to upgrade to websocket: ", err)
			return nil
		}
		defer conn.Close()

		var writeMu sync.Mutex
		sub, err := h.nc.Subscribe(h.cfg.SubjectPrefix+".events.*", func(msg *nats.Msg) {
			event, ok := h.realtimeEvent(user, msg)
			if !ok {
				return
			}
			out, err := json.Marshal(event)
			if err != nil {
				return
			}

			writeMu.Lock()
			defer writeMu.Unlock()
			if err := wsutil.WriteServerMessage(conn, ws.OpText, out); err != nil {
				log.Debugf("api: failed to send realtime event: %v", err)
			}
		})
		if err != nil {
			log.Errorf("api: failed to subscribe to events: %v", err)
			return nil
		}
		defer sub.Unsubscribe()

		log.WithField("user_id", user).Info("api realtime events client connected")

		// Client frames are ignored. Reading detects the close.
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				break
			}
		}

		log.WithField("user_id", user).Info("api realtime events client disconnected")
		return nil
	}
}

// realtimeEvent converts a NATS event. Events of devices the user doesn't
// own are skipped.
func (h *Handler) realtimeEvent(user string, msg *nats.Msg) (*resource.RealtimeEventResource, bool) {
	var evt message.EventMessage
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), ownerLookupTimeout)
	defer cancel()

	device, err := h.store.Devices().FindByID(ctx, evt.SourceID)
	if err != nil || !device.IsOwnedBy(user) {
		return nil, false
	}

	var data interface{}
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return nil, false
	}

	topic := msg.Subject[strings.LastIndex(msg.Subject, ".")+1:]
	return resource.NewRealtimeEvent(topic, evt.SourceID, data), true
}
