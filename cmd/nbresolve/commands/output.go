package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/marcuoli/go-nameresolve/internal/api"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve"
)

// render writes v as JSON or YAML, or calls text for the text format.
func render(w io.Writer, v any, text func(w io.Writer) error) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

func printAddresses(w io.Writer, label string, addrs []api.Address) error {
	for _, a := range addrs {
		if a.Port != 0 {
			if _, err := fmt.Fprintf(w, "%s:%d %s\n", a.Addr, a.Port, label); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", a.Addr, label); err != nil {
			return err
		}
	}
	return nil
}

// printStatus prints a name table in the nmblookup -A layout.
func printStatus(w io.Writer, st api.StatusResult) error {
	fmt.Fprintf(w, "Looking up status of %s\n", st.Addr)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, n := range st.Names {
		kind := "<UNIQUE>"
		if n.Group {
			kind = "<GROUP>"
		}
		flags := kind
		if n.Active {
			flags += " <ACTIVE>"
		}
		fmt.Fprintf(tw, "\t%s\t<%s>\t-\t%s\t%s\n", n.Name, n.Type[2:], flags, n.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if st.MAC != "" {
		fmt.Fprintf(w, "\n\tMAC Address = %s", st.MAC)
		if st.MACSource == nameresolve.MACSourceARP {
			fmt.Fprint(w, " (arp)")
		}
		if st.Vendor != "" {
			fmt.Fprintf(w, " [%s]", st.Vendor)
		}
		fmt.Fprintln(w)
	}
	_, err := fmt.Fprintln(w)
	return err
}
