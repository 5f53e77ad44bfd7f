package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/marcuoli/go-nameresolve/internal/api"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve"
)

var (
	dclistADSOnly bool
	dclistKDC     bool
	dclistSite    string
)

var dclistCmd = &cobra.Command{
	Use:   "dclist DOMAIN",
	Short: "List the domain controllers of a domain",
	Long: `List the domain controllers of a domain in the order a client should
try them: the server with affinity first, then the configured password
servers, then the rest sorted by closeness.

Examples:
  nbresolve dclist CORP
  nbresolve dclist corp.example.com --ads-only --site HQ
  nbresolve dclist CORP.EXAMPLE.COM --kdc`,
	Args: cobra.ExactArgs(1),
	RunE: runDCList,
}

func init() {
	dclistCmd.Flags().BoolVar(&dclistADSOnly, "ads-only", false, "only use DNS SRV records")
	dclistCmd.Flags().BoolVar(&dclistKDC, "kdc", false, "list Kerberos KDCs of the realm")
	dclistCmd.Flags().StringVar(&dclistSite, "site", "", "AD site (default from config)")
}

func runDCList(cmd *cobra.Command, args []string) error {
	r, closer, err := openResolver(nil)
	if err != nil {
		return err
	}
	defer closeQuietly(closer)

	domain := args[0]
	site := dclistSite
	if !cmd.Flags().Changed("site") {
		site = cfg.Resolve.Site
	}

	var list []nameresolve.Service
	if dclistKDC {
		list, err = r.GetKDCList(cmd.Context(), domain, site)
	} else {
		list, err = r.GetSortedDCList(cmd.Context(), domain, site, dclistADSOnly)
	}
	if err != nil {
		return err
	}

	res := api.DCListResult{Domain: domain, Site: site, Servers: api.Addresses(list)}
	return render(cmd.OutOrStdout(), res, func(w io.Writer) error {
		return printAddresses(w, domain, res.Servers)
	})
}
