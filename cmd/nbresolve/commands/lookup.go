package commands

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcuoli/go-nameresolve/internal/api"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve"
)

var (
	lookupType   string
	lookupOrder  string
	lookupSite   string
	lookupStatus bool
)

var lookupCmd = &cobra.Command{
	Use:   "lookup NAME[#TYPE]...",
	Short: "Resolve NetBIOS names",
	Long: `Resolve NetBIOS names using the configured name resolve order.

The name type defaults to 0x20 (file server) and can be given with --type
or as a "#TYPE" suffix. With -A the arguments are addresses and their node
status is printed instead.

Examples:
  nbresolve lookup FILESRV
  nbresolve lookup CORP#1c --order wins,bcast
  nbresolve lookup -t 1b CORP
  nbresolve lookup -A 192.168.1.10`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLookup,
}

func init() {
	lookupCmd.Flags().StringVarP(&lookupType, "type", "t", "0x20", "name type, e.g. 0x20, 1c or kdc")
	lookupCmd.Flags().StringVar(&lookupOrder, "order", "", "name resolve order (default from config)")
	lookupCmd.Flags().StringVar(&lookupSite, "site", "", "AD site for DC lookups")
	lookupCmd.Flags().BoolVarP(&lookupStatus, "status", "A", false, "arguments are addresses; query node status")
}

// splitNameType splits "NAME#TYPE".
func splitNameType(arg, defaultType string) (string, nameresolve.NameType, error) {
	name, suffix, found := strings.Cut(arg, "#")
	if !found {
		suffix = defaultType
	}
	t, err := nameresolve.ParseNameType(suffix)
	if err != nil {
		return "", 0, err
	}
	return name, t, nil
}

func runLookup(cmd *cobra.Command, args []string) error {
	r, closer, err := openResolver(nil)
	if err != nil {
		return err
	}
	defer closeQuietly(closer)

	if lookupStatus {
		return statusOfAddrs(cmd, r, args)
	}

	order := r.Order()
	if cmd.Flags().Changed("order") {
		order = nameresolve.ParseOrder(lookupOrder)
	}
	site := lookupSite
	if !cmd.Flags().Changed("site") {
		site = cfg.Resolve.Site
	}

	var failed []string
	var results []api.ResolveResult
	for _, arg := range args {
		name, t, err := splitNameType(arg, lookupType)
		if err != nil {
			return err
		}
		list, err := r.InternalResolveName(cmd.Context(), name, t, site, order)
		if err != nil {
			if cmd.Context().Err() != nil {
				return cmd.Context().Err()
			}
			PrintErr("name_query failed to find name %s#%s: %v", name, t, err)
			failed = append(failed, arg)
			continue
		}
		results = append(results, api.ResolveResult{Name: name, Type: t.String(), Addrs: api.Addresses(list)})
	}

	err = render(cmd.OutOrStdout(), results, func(w io.Writer) error {
		for _, res := range results {
			label := fmt.Sprintf("%s<%s>", res.Name, strings.TrimPrefix(res.Type, "0x"))
			if err := printAddresses(w, label, res.Addrs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d names not resolved", len(failed), len(args))
	}
	return nil
}

func statusOfAddrs(cmd *cobra.Command, r *nameresolve.Resolver, args []string) error {
	var errs []error
	var results []api.StatusResult
	for _, arg := range args {
		addr, err := netip.ParseAddr(arg)
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", arg, err)
		}
		hs, err := r.NodeStatus(cmd.Context(), addr)
		if err != nil {
			PrintErr("No reply from %s", addr)
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		results = append(results, api.NewStatusResult(hs))
	}
	if err := renderStatus(cmd, results); err != nil {
		return err
	}
	return errors.Join(errs...)
}
