package cli

import "github.com/nsyszr/soilcontrol/config"

type Handler struct {
	Migration *MigrateHandler
	Device    *DeviceHandler
	Seed      *SeedHandler
	Config    *ConfigHandler
	Events    *EventsHandler
}

func NewHandler(c *config.Config) *Handler {
	return &Handler{
		Migration: newMigrateHandler(c),
		Device:    newDeviceHandler(c),
		Seed:      newSeedHandler(c),
		Config:    newConfigHandler(c),
		Events:    newEventsHandler(c),
	}
}
