package devicecontrol

import (
	"github.com/gobwas/ws"
	"github.com/labstack/echo/v4"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/controlchannel"
	log "github.com/sirupsen/logrus"
)

// Handler serves the device websocket endpoint.
type Handler struct {
	ctrl *controlchannel.Controller
}

// NewHandler create a new device endpoint handler
func NewHandler(ctrl *controlchannel.Controller) *Handler {
	return &Handler{
		ctrl: ctrl,
	}
}

// RegisterRoutes attaches the handlers to the echo web server
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	log.Debug("Register devicecontrol routes")
	e.GET("/websocket", h.controlChannelHandler())
}

func (h *Handler) controlChannelHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, _, _, err := ws.UpgradeHTTP(c.Request(), c.Response())
		if err != nil {
			return err
		}

		// Serve blocks until the connection is gone and closes it.
		h.ctrl.Serve(conn, c.QueryParam("deviceId"))

		log.Debug("handler exit control channel handler func")
		return nil
	}
}
