package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nsyszr/soilcontrol/pkg/api/resource"
	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/nsyszr/soilcontrol/pkg/storage"
	log "github.com/sirupsen/logrus"
)

const measurementHistoryLimit = 10

func (h *Handler) handleRegisterDevice(c echo.Context) error {
	r := &resource.RegisterDeviceResource{}
	if err := c.Bind(r); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}

	m, err := resource.ValidateRegisterDevice(r)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	m.AuthKey, err = model.NewAuthKey()
	if err != nil {
		log.Errorf("api failed to generate auth key: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "Internal server error")
	}

	err = h.store.Devices().Create(c.Request().Context(), m)
	if err == storage.ErrAlreadyExists {
		return errorJSON(c, http.StatusBadRequest, "Device already registered")
	} else if err != nil {
		log.Errorf("api failed to register device: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "Internal server error")
	}

	log.WithField("device_id", m.ID).Info("api registered device")

	return c.JSON(http.StatusOK, &resource.RegisterDeviceResource{
		DeviceID: m.ID,
		AuthKey:  m.AuthKey,
	})
}

func (h *Handler) handleFetchDevices(c echo.Context) error {
	m, err := h.store.Devices().FetchAllByOwner(c.Request().Context(), userID(c))
	if err != nil {
		log.Errorf("api failed to fetch devices: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "Internal server error")
	}

	return c.JSON(http.StatusOK, resource.NewDeviceList(m, h.sessions.Has))
}

func (h *Handler) handleFetchMeasurements(c echo.Context) error {
	ctx := c.Request().Context()

	device, err := h.store.Devices().FindByID(ctx, c.Param("id"))
	if err == storage.ErrNotFound || (err == nil && !device.IsOwnedBy(userID(c))) {
		return errorJSON(c, http.StatusNotFound, "Device not found or not owned by user")
	} else if err != nil {
		log.Errorf("api failed to find device: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "Internal server error")
	}

	m, err := h.store.Measurements().FindLatestByDeviceID(ctx, device.ID, measurementHistoryLimit)
	if err != nil {
		log.Errorf("api failed to fetch measurements: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "Internal server error")
	}

	return c.JSON(http.StatusOK, resource.NewMeasurementList(m))
}
