package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var flags deviceFlags
	var verbose bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List cameras",
		Long:  `Lists the cameras every enabled backend can open, along with the backends themselves.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			initLogging(verbose)

			registry, err := flags.registry()
			if err != nil {
				return err
			}
			list, err := registry.Discover()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tVENDOR\tMODEL\tSERIAL\tINTERFACE\tPATH")
			for _, info := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					info.ID, info.Vendor, info.Model, info.Serial, info.Interface, info.Path)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(out)
			for _, status := range registry.Interfaces() {
				state := "disabled"
				if status.Enabled {
					state = "enabled"
				}
				fmt.Fprintf(out, "backend %s: %s\n", status.Name, state)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}
