// Command catcher runs the Catcher event capture and relay server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "catcher",
		Short:        "Catcher event capture and relay server",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "Path to catcher.yaml")

	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("catcher version %s\n", version))

	root.AddCommand(newServeCmd())
	root.AddCommand(newCheckConfigCmd())
	return root
}
