package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Gateway event helpers",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(cmd.UsageString())
		os.Exit(2)
	},
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print device status and measurement events published on NATS",
	Run:   cmdHandler.Events.Watch,
}

func init() {
	RootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsWatchCmd)
}
