package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nsyszr/soilcontrol/pkg/api/resource"
)

func (h *Handler) handleFetchSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, resource.NewSessionList(h.sessions.DeviceIDs()))
}
