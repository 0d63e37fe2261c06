package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// deviceCmd represents the device command
var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Device tooling and control plane commands",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(cmd.UsageString())
		os.Exit(2)
	},
}

var deviceSignCmd = &cobra.Command{
	Use:   "sign <device-id> <auth-key> [timestamp]",
	Short: "Print a signed auth frame",
	Run:   cmdHandler.Device.Sign,
}

var deviceSimulateCmd = &cobra.Command{
	Use:   "simulate <device-id> <auth-key>",
	Short: "Run a simulated soil moisture sensor",
	Run:   cmdHandler.Device.Simulate,
}

var deviceConfigureCmd = &cobra.Command{
	Use:   "configure <device-id>",
	Short: "Send new thresholds to a device",
	Run:   cmdHandler.Device.Configure,
}

var devicePairCmd = &cobra.Command{
	Use:   "pair <device-id> <pairing-code>",
	Short: "Forward a pairing code to a device",
	Run:   cmdHandler.Device.Pair,
}

var deviceClaimCmd = &cobra.Command{
	Use:   "claim <device-id> <auth-key>",
	Short: "Claim a device for a user",
	Run:   cmdHandler.Device.Claim,
}

func init() {
	RootCmd.AddCommand(deviceCmd)
	deviceCmd.AddCommand(deviceSignCmd, deviceSimulateCmd, deviceConfigureCmd, devicePairCmd, deviceClaimCmd)

	for _, cmd := range []*cobra.Command{deviceSignCmd, deviceSimulateCmd} {
		cmd.Flags().String("scheme", "", "signature scheme, one of hmac-sha256 or md5 (default SIGNATURE_SCHEME)")
	}

	deviceSimulateCmd.Flags().String("url", "", "websocket URL of the gateway (default ws://localhost:PORT/websocket)")
	deviceSimulateCmd.Flags().Duration("interval", 5*time.Second, "measurement interval")

	deviceConfigureCmd.Flags().Int("red", 0, "red threshold")
	deviceConfigureCmd.Flags().Int("yellow", 0, "yellow threshold")
	deviceConfigureCmd.Flags().Int("green", 0, "green threshold")

	deviceClaimCmd.Flags().String("user", "", "id of the claiming user")
	deviceClaimCmd.Flags().String("name", "", "display name of the device")
}
