package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/command"
	"github.com/nsyszr/soilcontrol/pkg/storage"
	log "github.com/sirupsen/logrus"
)

// Dispatcher is implemented by command.Dispatcher.
type Dispatcher interface {
	Claim(ctx context.Context, req command.ClaimRequest) (*command.ClaimResult, error)
	Command(ctx context.Context, req command.CommandRequest) (*command.CommandResult, error)
}

// Sessions lists the devices connected to this gateway.
type Sessions interface {
	Has(deviceID string) bool
	DeviceIDs() []string
}

type Config struct {
	// JWTSecret verifies the HS256 bearer tokens of users.
	JWTSecret string
	// SubjectPrefix is the NATS subject prefix of the event subjects.
	SubjectPrefix string
}

// Handler contains all properties to serve the API
type Handler struct {
	store    storage.Interface
	disp     Dispatcher
	sessions Sessions
	nc       *nats.Conn
	cfg      Config
}

// NewHandler create a new API handler. nc is optional, without it the
// realtime events are unavailable.
func NewHandler(store storage.Interface, disp Dispatcher, sessions Sessions, nc *nats.Conn, cfg Config) *Handler {
	return &Handler{
		store:    store,
		disp:     disp,
		sessions: sessions,
		nc:       nc,
		cfg:      cfg,
	}
}

// RegisterRoutes attaches the handlers to the echo web server
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	log.Debug("Register API routes")
	e.GET("/health", h.handleHealth)

	api := e.Group("/api/v1")
	api.POST("/devices/register", h.handleRegisterDevice)

	auth := api.Group("", h.requireUser)
	auth.GET("/devices", h.handleFetchDevices)
	auth.POST("/devices/claim", h.handleClaimDevice)
	auth.POST("/devices/command", h.handleCommandRequest)
	auth.GET("/devices/:id/measurements", h.handleFetchMeasurements)
	auth.GET("/sessions", h.handleFetchSessions)
	auth.GET("/realtime-events", h.realtimeEventsHandler())
}

type errorResource struct {
	Error string `json:"error"`
}

func errorJSON(c echo.Context, code int, message string) error {
	return c.JSON(code, &errorResource{Error: message})
}

// commandErrorJSON maps dispatcher errors to HTTP status codes. Claiming a
// claimed device is reported as a bad request.
func commandErrorJSON(c echo.Context, err error) error {
	switch {
	case command.IsInvalid(err), command.IsConflict(err):
		return errorJSON(c, http.StatusBadRequest, err.Error())
	case command.IsUnauthorized(err):
		return errorJSON(c, http.StatusUnauthorized, err.Error())
	case command.IsForbidden(err):
		return errorJSON(c, http.StatusForbidden, err.Error())
	case command.IsNotFound(err):
		return errorJSON(c, http.StatusNotFound, err.Error())
	}

	log.Errorf("api command request failed: %v", err)
	return errorJSON(c, http.StatusInternalServerError, "Internal server error")
}
