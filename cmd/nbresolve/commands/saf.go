package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/marcuoli/go-nameresolve/internal/logger"
)

var safJoin bool

var safCmd = &cobra.Command{
	Use:   "saf",
	Short: "Manage server affinity",
	Long: `Manage the server affinity cache: the domain controller a domain's
lookups should try first.

The cache lives in memory unless cache.path is configured, so set, get and
delete only persist across runs with an on-disk cache.`,
}

var safGetCmd = &cobra.Command{
	Use:   "get DOMAIN",
	Short: "Show the preferred server of a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closer, err := openResolver(nil)
		if err != nil {
			return err
		}
		defer closeQuietly(closer)

		server := r.Affinity().Fetch(args[0])
		if server == "" {
			return fmt.Errorf("no server affinity for %s", args[0])
		}
		res := map[string]string{"domain": args[0], "server": server}
		return render(cmd.OutOrStdout(), res, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, server)
			return err
		})
	},
}

var safSetCmd = &cobra.Command{
	Use:   "set DOMAIN SERVER",
	Short: "Set the preferred server of a domain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closer, err := openResolver(nil)
		if err != nil {
			return err
		}
		defer closeQuietly(closer)
		warnVolatileCache("server affinity")

		store := r.Affinity().Store
		if safJoin {
			store = r.Affinity().StoreJoin
		}
		if err := store(args[0], args[1]); err != nil {
			return fmt.Errorf("set server affinity: %w", err)
		}
		logger.Info("server affinity set", logger.KeyDomain, args[0], "server", args[1], "join", safJoin)
		return nil
	},
}

var safDeleteCmd = &cobra.Command{
	Use:   "delete DOMAIN",
	Short: "Forget the preferred server of a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closer, err := openResolver(nil)
		if err != nil {
			return err
		}
		defer closeQuietly(closer)
		warnVolatileCache("server affinity")

		if err := r.Affinity().Delete(args[0]); err != nil {
			return fmt.Errorf("delete server affinity: %w", err)
		}
		logger.Info("server affinity deleted", logger.KeyDomain, args[0])
		return nil
	},
}

func init() {
	safSetCmd.Flags().BoolVar(&safJoin, "join", false, "record the affinity of a domain join (longer lifetime)")
	safCmd.AddCommand(safGetCmd, safSetCmd, safDeleteCmd)
}

func warnVolatileCache(what string) {
	if cfg.Cache.Path == "" {
		logger.Warn("cache.path is not set; " + what + " will not outlive this command")
	}
}
