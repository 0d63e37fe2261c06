package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type healthResource struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, &healthResource{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	})
}
