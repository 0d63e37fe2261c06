package cli

import (
	"fmt"
	"os"

	"github.com/nsyszr/soilcontrol/config"
	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"
)

type ConfigHandler struct {
	c *config.Config
}

func newConfigHandler(c *config.Config) *ConfigHandler {
	return &ConfigHandler{c: c}
}

// Print writes the effective configuration as YAML with secrets masked.
func (h *ConfigHandler) Print(cmd *cobra.Command, args []string) {
	out, err := yaml.Marshal(h.c.Masked())
	if err != nil {
		fmt.Printf("Could not render config: %s\n", err)
		os.Exit(1)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
}
