package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seqarc/tern/internal/config"
	"github.com/seqarc/tern/pkg/logx"
)

var (
	// Used for flags.
	flagConfig string

	rootCmd = &cobra.Command{
		Use:           "tern",
		Short:         "A resumable genomic data archive uploader",
		Long:          "Tern - A resumable uploader for genomic data files to a remote archive",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "d", "", "config file path")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	// commands that do not touch the archive (version) run without a config
	if flagConfig == "" {
		return
	}

	var err error
	err = config.Initialize(flagConfig)
	if err != nil {
		fmt.Println("failed to initialize config")
		cobra.CheckErr(err)
	}

	err = logx.Initialize(config.Get().Log)
	if err != nil {
		fmt.Println(err)
		cobra.CheckErr(err)
	}
}
