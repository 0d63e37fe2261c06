package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nsyszr/soilcontrol/pkg/api/resource"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/command"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/message"
)

type claimResultResource struct {
	Success  bool                  `json:"success"`
	Device   command.DeviceSummary `json:"device"`
	Notified bool                  `json:"notified"`
}

type commandResultResource struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *Handler) handleClaimDevice(c echo.Context) error {
	r := &resource.ClaimDeviceResource{}
	if err := c.Bind(r); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := resource.ValidateClaimDevice(r); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	res, err := h.disp.Claim(c.Request().Context(), command.ClaimRequest{
		DeviceID: r.DeviceID,
		AuthKey:  r.AuthKey,
		Name:     r.Name,
		UserID:   userID(c),
	})
	if err != nil {
		return commandErrorJSON(c, err)
	}

	return c.JSON(http.StatusOK, &claimResultResource{
		Success:  true,
		Device:   res.Device,
		Notified: res.Notified,
	})
}

// handleCommandRequest forwards a configure or pair command. The status is
// pending when the device is offline.
func (h *Handler) handleCommandRequest(c echo.Context) error {
	req := &message.CommandRequest{}
	if err := c.Bind(req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.DeviceID == "" {
		return errorJSON(c, http.StatusBadRequest, "Device ID is required")
	}

	res, err := h.disp.Command(c.Request().Context(), command.CommandRequest{
		DeviceID: req.DeviceID,
		Type:     req.Type,
		Payload:  req.Payload,
		OwnerID:  userID(c),
	})
	if err != nil {
		return commandErrorJSON(c, err)
	}

	status := "success"
	if !res.Delivered {
		status = "pending"
	}
	return c.JSON(http.StatusOK, &commandResultResource{
		Status:  status,
		Message: res.Message,
	})
}
