package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luma/goxlr/internal/meta"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := meta.GetInfo()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "goxlr %s (%s, %s)\n", info.Version, info.Build, info.Branch)
		fmt.Fprintf(out, "Built %s with %s for %s\n", info.BuildTime, info.GoVersion, info.Platform)

		return nil
	},
}
