// Package commands implements the wagateway command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/MrEthical07/goWA/config"
)

type globalFlags struct {
	configPath string
	envFile    string
}

// Execute runs the root command against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "wagateway",
		Short:         "Multi-session WhatsApp messaging gateway",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before WAGW_* variables are read")

	root.AddCommand(serveCmd(flags), tokenCmd(flags), versionCmd())
	return root
}

func (g *globalFlags) load() (config.File, error) {
	return config.Load(g.configPath, g.envFile)
}
