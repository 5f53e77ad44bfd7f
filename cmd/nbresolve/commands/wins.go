package commands

import (
	"fmt"
	"io"
	"net/netip"

	"github.com/spf13/cobra"

	"github.com/marcuoli/go-nameresolve/internal/logger"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/wins"
)

var winsSource string

var winsCmd = &cobra.Command{
	Use:   "wins",
	Short: "Manage WINS server liveness",
	Long: `Manage WINS server liveness. A WINS server that times out is marked
dead for the source address it was queried from and skipped until
cache.wins_dead_time passes. The source defaults to resolve.socket_address.`,
}

// winsTarget opens the resolver and parses the server and source
// addresses of a wins subcommand. done closes the cache.
func winsTarget(server string) (tracker *wins.Tracker, srv, src netip.Addr, done func(), err error) {
	if srv, err = netip.ParseAddr(server); err != nil {
		return nil, srv, src, nil, fmt.Errorf("invalid WINS server %q", server)
	}
	r, closer, err := openResolver(nil)
	if err != nil {
		return nil, srv, src, nil, err
	}
	src = r.Client().SourceAddr()
	if winsSource != "" {
		if src, err = netip.ParseAddr(winsSource); err != nil {
			closeQuietly(closer)
			return nil, srv, src, nil, fmt.Errorf("invalid source address %q", winsSource)
		}
	}
	return r.WINSTracker(), srv.Unmap(), src.Unmap(), func() { closeQuietly(closer) }, nil
}

var winsCheckCmd = &cobra.Command{
	Use:   "check SERVER",
	Short: "Show whether a WINS server is marked dead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, srv, src, done, err := winsTarget(args[0])
		if err != nil {
			return err
		}
		defer done()

		state := "alive"
		if tracker.IsDead(srv, src) {
			state = "dead"
		}
		res := map[string]string{"server": srv.String(), "source": src.String(), "state": state}
		return render(cmd.OutOrStdout(), res, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "%s %s\n", srv, state)
			return err
		})
	},
}

var winsDeadCmd = &cobra.Command{
	Use:   "dead SERVER",
	Short: "Mark a WINS server dead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, srv, src, done, err := winsTarget(args[0])
		if err != nil {
			return err
		}
		defer done()
		warnVolatileCache("WINS liveness")

		tracker.MarkDead(srv, src)
		logger.Info("WINS server marked dead", logger.KeyAddr, srv.String(), "source", src.String())
		return nil
	},
}

var winsAliveCmd = &cobra.Command{
	Use:   "alive SERVER",
	Short: "Give a dead WINS server another chance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, srv, src, done, err := winsTarget(args[0])
		if err != nil {
			return err
		}
		defer done()
		warnVolatileCache("WINS liveness")

		tracker.MarkAlive(srv, src)
		logger.Info("WINS server marked alive", logger.KeyAddr, srv.String(), "source", src.String())
		return nil
	},
}

func init() {
	winsCmd.PersistentFlags().StringVar(&winsSource, "source", "", "source address the liveness is tracked for")
	winsCmd.AddCommand(winsCheckCmd, winsDeadCmd, winsAliveCmd)
}
