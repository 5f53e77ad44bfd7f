package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcuoli/go-nameresolve/internal/api"
	"github.com/marcuoli/go-nameresolve/internal/logger"
	"github.com/marcuoli/go-nameresolve/internal/scanner"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve"
)

var (
	statusWorkers int
	statusTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status ADDR|CIDR...",
	Short: "Query NetBIOS node status",
	Long: `Query the NetBIOS name table of hosts.

A CIDR argument sweeps every host address of the network in parallel and
prints the hosts that answered.

Examples:
  nbresolve status 192.168.1.10
  nbresolve status 192.168.1.0/24 --workers 128`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusWorkers, "workers", 64, "concurrent queries for a CIDR sweep")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 2*time.Second, "per-host timeout for a CIDR sweep")
}

func runStatus(cmd *cobra.Command, args []string) error {
	r, closer, err := openResolver(nil)
	if err != nil {
		return err
	}
	defer closeQuietly(closer)

	var addrs []string
	for _, arg := range args {
		if !strings.Contains(arg, "/") {
			addrs = append(addrs, arg)
			continue
		}
		if err := sweep(cmd, r, arg); err != nil {
			return err
		}
	}
	if len(addrs) > 0 {
		return statusOfAddrs(cmd, r, addrs)
	}
	return nil
}

func sweep(cmd *cobra.Command, r *nameresolve.Resolver, cidr string) error {
	start := time.Now()
	hosts, err := scanner.Discover(cmd.Context(), cidr, r, scanner.Options{
		Timeout: statusTimeout,
		Workers: statusWorkers,
	})
	if err != nil {
		return fmt.Errorf("sweep %s: %w", cidr, err)
	}
	logger.Info("node status sweep complete",
		"cidr", cidr,
		logger.KeyCount, len(hosts),
		logger.DurationMs(start),
	)

	results := make([]api.StatusResult, 0, len(hosts))
	for _, hs := range hosts {
		results = append(results, api.NewStatusResult(hs))
	}
	return renderStatus(cmd, results)
}

func renderStatus(cmd *cobra.Command, results []api.StatusResult) error {
	return render(cmd.OutOrStdout(), results, func(w io.Writer) error {
		for _, st := range results {
			if err := printStatus(w, st); err != nil {
				return err
			}
		}
		return nil
	})
}
