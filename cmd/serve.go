package cmd

import (
	"fmt"
	"os"

	"github.com/nsyszr/soilcontrol/pkg/cmd/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Parent command for starting the server instances",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(cmd.UsageString())
		os.Exit(2)
	},
}

// serveGatewayCmd represents the serve gateway command
var serveGatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Serve the device websocket endpoint and the HTTP control plane",
	Run:   server.RunServeGateway(c),
}

func init() {
	RootCmd.AddCommand(serveCmd)
	serveCmd.AddCommand(serveGatewayCmd)
}
