package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seqarc/tern/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and build commit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tern %s (%s)\n",
			strings.TrimSpace(version.Number()), strings.TrimSpace(version.Commit()))
	},
}
