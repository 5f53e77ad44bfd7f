package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/marcuoli/go-nameresolve/internal/logger"
)

var negconnReason string

var negconnCmd = &cobra.Command{
	Use:   "negconn",
	Short: "Manage the failed connection cache",
	Long: `Manage the failed connection cache: domain controllers that recently
refused a connection. Domain controller lists skip them until the entry
expires (cache.conn_failure_ttl).`,
}

var negconnAddCmd = &cobra.Command{
	Use:   "add DOMAIN SERVER",
	Short: "Record a failed connection to a server of a domain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closer, err := openResolver(nil)
		if err != nil {
			return err
		}
		defer closeQuietly(closer)
		warnVolatileCache("failed connections")

		if err := r.ConnFailures().Add(args[0], args[1], errors.New(negconnReason)); err != nil {
			return fmt.Errorf("add failed connection: %w", err)
		}
		logger.Info("failed connection recorded", logger.KeyDomain, args[0], "server", args[1])
		return nil
	},
}

var negconnCheckCmd = &cobra.Command{
	Use:   "check DOMAIN SERVER",
	Short: "Show whether a server of a domain is skipped",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closer, err := openResolver(nil)
		if err != nil {
			return err
		}
		defer closeQuietly(closer)

		state := "ok"
		if r.ConnFailures().IsBad(args[0], args[1]) {
			state = "failed"
		}
		res := map[string]string{"domain": args[0], "server": args[1], "state": state}
		return render(cmd.OutOrStdout(), res, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "%s %s\n", args[1], state)
			return err
		})
	},
}

var negconnDeleteCmd = &cobra.Command{
	Use:   "delete DOMAIN SERVER",
	Short: "Forget a failed connection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closer, err := openResolver(nil)
		if err != nil {
			return err
		}
		defer closeQuietly(closer)
		warnVolatileCache("failed connections")

		if err := r.ConnFailures().Delete(args[0], args[1]); err != nil {
			return fmt.Errorf("delete failed connection: %w", err)
		}
		logger.Info("failed connection deleted", logger.KeyDomain, args[0], "server", args[1])
		return nil
	},
}

func init() {
	negconnAddCmd.Flags().StringVar(&negconnReason, "reason", "connection refused", "reason stored with the entry")
	negconnCmd.AddCommand(negconnAddCmd, negconnCheckCmd, negconnDeleteCmd)
}
