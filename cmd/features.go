package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/smazurov/camnode/pkg/genicam"
	"github.com/spf13/cobra"
)

func featureValue(info genicam.Info) string {
	if info.ValueErr != nil {
		return "<" + info.ValueErr.Error() + ">"
	}
	if info.Kind == genicam.KindCommand {
		return ""
	}
	return info.Value.String()
}

func printFeature(out io.Writer, info genicam.Info) {
	fmt.Fprintf(out, "Name:   %s\n", info.Name)
	fmt.Fprintf(out, "Kind:   %s\n", info.Kind)
	fmt.Fprintf(out, "Access: %s\n", info.Access)
	if info.Description != "" {
		fmt.Fprintf(out, "About:  %s\n", info.Description)
	}
	fmt.Fprintf(out, "Value:  %s %s\n", featureValue(info), info.Unit)
	switch info.Kind {
	case genicam.KindInteger:
		fmt.Fprintf(out, "Range:  %d..%d step %d\n", info.Min, info.Max, info.Inc)
	case genicam.KindFloat:
		fmt.Fprintf(out, "Range:  %g..%g\n", info.FloatMin, info.FloatMax)
	case genicam.KindEnumeration:
		for _, e := range info.Entries {
			fmt.Fprintf(out, "  - %s (0x%x)\n", e.Name, e.Value)
		}
	}
	if info.Formula != "" {
		fmt.Fprintf(out, "Formula: %s\n", info.Formula)
	}
}

// CreateFeaturesCmd creates the features command.
func CreateFeaturesCmd() *cobra.Command {
	var flags deviceFlags
	var verbose bool

	cmd := &cobra.Command{
		Use:   "features [device-id] [name]",
		Short: "Show camera features",
		Long:  `Lists every feature node of a camera, or describes a single node when a name is given.`,
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging(verbose)

			cam, err := flags.open(optionalArg(args, 0))
			if err != nil {
				return err
			}
			defer cam.Close()

			out := cmd.OutOrStdout()
			if name := optionalArg(args, 1); name != "" {
				info, err := cam.FeatureInfo(name)
				if err != nil {
					return err
				}
				printFeature(out, info)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKIND\tACCESS\tVALUE")
			for _, info := range cam.Features() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Name, info.Kind, info.Access, featureValue(info))
			}
			return w.Flush()
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}
