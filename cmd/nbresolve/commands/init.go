package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcuoli/go-nameresolve/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample nbresolve configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/nbresolve/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  nbresolve init

  # Initialize with custom path
  nbresolve init --config /etc/nbresolve/config.yaml

  # Force overwrite existing config
  nbresolve init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	var configPath string
	var err error

	if cfgFile != "" {
		err = config.InitConfigToPath(cfgFile, initForce)
		configPath = cfgFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Set resolve.workgroup and wins.servers for your network")
	fmt.Fprintln(out, "  2. Try a lookup with: nbresolve lookup NAME")
	fmt.Fprintf(out, "  3. Or specify the config explicitly: nbresolve lookup NAME --config %s\n", configPath)
	return nil
}
