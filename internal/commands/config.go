package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"evalgo.org/gglsbl/internal/config"
)

func (c *cli) newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	showConfigCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE:  c.runShowConfig,
	}

	var force bool
	initConfigCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Initialize a configuration file",
		Long: `Write a configuration file with one profile built from the flags.

The file is written to ~/.config/gglsbl-rest.ini unless a path is given.

Examples:
  gglsbl config init
  gglsbl config init -r scanner.local -p 5001 --profile staging
  gglsbl config init /etc/gglsbl-rest/config.ini --force`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInitConfig(cmd, args, force)
		},
	}
	initConfigCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(initConfigCmd)
	return configCmd
}

func (c *cli) runShowConfig(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(c.settings)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func (c *cli) runInitConfig(cmd *cobra.Command, args []string, force bool) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to locate home directory: %w", err)
		}
		path = filepath.Join(home, ".config", "gglsbl-rest.ini")
	}

	settings := &config.Settings{
		Profile:     c.profile,
		RemoteHost:  c.remoteHost,
		RemotePort:  c.port,
		IgnoreProxy: c.ignoreProxy,
		TLS:         c.useTLS,
		Timeout:     c.timeout,
	}
	if err := config.Write(path, settings, force); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s\n", path)
	return nil
}
