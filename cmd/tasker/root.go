package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Config files tried when no --config flag is given, in order
var defaultConfigPaths = []string{"tasker.toml", "deployments/local/tasker.toml"}

type serveOptions struct {
	configFiles []string
	host        string
	port        int
	reload      bool
}

func newRootCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:          "tasker",
		Short:        "Tasker - authenticated task management API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringArrayVarP(&opts.configFiles, "config", "c", nil, "configuration file (repeatable, later files override earlier ones)")
	flags.StringVar(&opts.host, "host", "", "server host (overrides config)")
	flags.IntVarP(&opts.port, "port", "p", 0, "server port (overrides config)")
	flags.BoolVar(&opts.reload, "reload", false, "restart the server when a config file changes")

	cmd.AddCommand(newServeCmd(opts), newVersionCmd())
	return cmd
}

// resolveConfigPaths returns the explicit config files, or the first default that exists
func resolveConfigPaths(explicit []string) []string {
	if len(explicit) > 0 {
		return explicit
	}
	for _, path := range defaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return []string{path}
		}
	}
	return nil
}
