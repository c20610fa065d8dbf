// Package ipcmder provides the ip command.
package ipcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kcterala/kit/pkg/cmdenv"
	"github.com/kcterala/kit/pkg/netinfo"
)

const ipShortDesc string = "Print your public IP address"

// newTraceClient builds the lookup client. Replaced in tests.
var newTraceClient = netinfo.NewClient

func NewIPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ip",
		Short: ipShortDesc,
		Long:  ipShortDesc + ", as seen by Cloudflare's trace endpoint.\n\nWith --verbose the location and data center are printed too.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verbose, _ := cmd.Flags().GetBool(cmdenv.VerboseFlag)

			trace, err := newTraceClient().Lookup(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, trace.IP)
			if verbose {
				fmt.Fprintf(out, "location: %s\n", trace.Loc)
				fmt.Fprintf(out, "colo:     %s\n", trace.Colo)
			}
			return nil
		},
	}
}
