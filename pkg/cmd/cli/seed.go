package cli

import (
	"context"
	"os"

	"github.com/nsyszr/soilcontrol/config"
	"github.com/nsyszr/soilcontrol/pkg/cmd/server"
	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/nsyszr/soilcontrol/pkg/storage"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type SeedHandler struct {
	c *config.Config
}

func newSeedHandler(c *config.Config) *SeedHandler {
	return &SeedHandler{c: c}
}

// SeedDevices returns the demo devices: a claimed device and one waiting
// to be claimed.
func SeedDevices(ownerID, unclaimedKey string) []*model.Device {
	return []*model.Device{
		{
			ID:              "test-device-001",
			Name:            "Test Device",
			AuthKey:         "a1b2c3d4e5f6",
			Claimed:         true,
			OwnerID:         &ownerID,
			ThresholdRed:    15,
			ThresholdYellow: 40,
			ThresholdGreen:  70,
		},
		{
			ID:              "unclaimed-device-001",
			Name:            "Unclaimed Device",
			AuthKey:         unclaimedKey,
			ThresholdRed:    model.DefaultThresholdRed,
			ThresholdYellow: model.DefaultThresholdYellow,
			ThresholdGreen:  model.DefaultThresholdGreen,
		},
	}
}

// SeedStore creates the demo devices. Existing devices are kept.
func SeedStore(ctx context.Context, store storage.DeviceStore, ownerID string) (int, error) {
	key, err := model.NewAuthKey()
	if err != nil {
		return 0, err
	}

	n := 0
	for _, d := range SeedDevices(ownerID, key) {
		err := store.Create(ctx, d)
		if err == storage.ErrAlreadyExists {
			log.Infof("Device '%s' exists already", d.ID)
			continue
		} else if err != nil {
			return n, err
		}
		log.WithFields(log.Fields{
			"device_id": d.ID,
			"auth_key":  d.AuthKey,
			"claimed":   d.Claimed,
		}).Info("Created device")
		n++
	}
	return n, nil
}

func (h *SeedHandler) Seed(cmd *cobra.Command, args []string) {
	ownerID, _ := cmd.Flags().GetString("owner")

	ctx := context.Background()
	store, err := server.OpenStore(ctx, h.c)
	if err != nil {
		log.Errorf("An error occurred while opening the store: %s", err)
		os.Exit(1)
	}
	defer store.Close()

	n, err := SeedStore(ctx, store.Devices(), ownerID)
	if err != nil {
		log.Errorf("An error occurred while seeding: %s", err)
		os.Exit(1)
	}
	log.Infof("Seed successful! Created %d devices.", n)
}
