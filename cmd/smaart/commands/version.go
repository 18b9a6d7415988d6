package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roasbeef/smaart/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run:   runVersion,
}

// runVersion prints the version and build information.
func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("smaart version %s go=%s\n",
		build.Version(), build.GoVersion())
}
