package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"virtnet/internal/config"
)

// globalFlags are shared by every command
type globalFlags struct {
	configPath string
	envFiles   []string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "virtnet",
		Short:         "Virtual network server for exploring topology graphs",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Running without a subcommand starts the server.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags, &serveFlags{})
		},
	}
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "",
		fmt.Sprintf("config file (default: $%s or first of the search paths)", config.EnvConfigPath))
	root.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", []string{".env"}, "dotenv files loaded before the config")

	root.AddCommand(newServeCmd(flags), newTreemapCmd(), newVersionCmd())
	return root
}

// loadConfig reads the config file, then .env files and the environment.
// It returns the path the config came from, empty when defaults were used.
func loadConfig(flags *globalFlags) (*config.Config, string, error) {
	if err := config.LoadDotEnv(flags.envFiles...); err != nil {
		return nil, "", err
	}

	var (
		cfg  *config.Config
		path string
		err  error
	)
	if flags.configPath != "" {
		cfg, path, err = config.LoadFromPath(flags.configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, path, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}
