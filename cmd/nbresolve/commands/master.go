package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var masterCmd = &cobra.Command{
	Use:   "master GROUP",
	Short: "Find the master browser of a workgroup",
	Long: `Find the master browser of a workgroup. The local master browser
(0x1d) is tried first, then the domain master browser (0x1b).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closer, err := openResolver(nil)
		if err != nil {
			return err
		}
		defer closeQuietly(closer)

		addr, err := r.FindMasterIP(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("no master browser for %s: %w", args[0], err)
		}
		res := map[string]string{"group": args[0], "addr": addr.String()}
		return render(cmd.OutOrStdout(), res, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "%s %s\n", addr, args[0])
			return err
		})
	},
}

var pdcCmd = &cobra.Command{
	Use:   "pdc DOMAIN",
	Short: "Find the primary domain controller of a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closer, err := openResolver(nil)
		if err != nil {
			return err
		}
		defer closeQuietly(closer)

		addr, err := r.GetPDCIP(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("no PDC for %s: %w", args[0], err)
		}
		res := map[string]string{"domain": args[0], "addr": addr.String()}
		return render(cmd.OutOrStdout(), res, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "%s %s\n", addr, args[0])
			return err
		})
	},
}
