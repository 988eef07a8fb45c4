package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/crxforge/crxforge/internal/config"
	"github.com/crxforge/crxforge/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "crxforge",
		Short: "crxforge - extension test orchestration engine",
		Long: `crxforge provisions remote browser sessions with generated extensions
pre-loaded, executes sandboxed test scripts against them, verifies the
results against captured runtime logs, and records replays.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; real deployments use the environment directly.
			_ = godotenv.Load()

			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}
			logging.Setup(logging.ParseLevel(cfg.LogLevel))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file")
	root.AddCommand(serveCmd())
	return root
}
