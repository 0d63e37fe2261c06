package cmd

import (
	"github.com/spf13/cobra"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the demo devices in the configured store",
	Run:   cmdHandler.Seed.Seed,
}

func init() {
	RootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("owner", "admin", "owner of the claimed demo device")
}
