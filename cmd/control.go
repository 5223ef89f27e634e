package cmd

import (
	"fmt"
	"time"

	"github.com/smazurov/camnode/internal/nats"
	"github.com/spf13/cobra"
)

// CreateControlCmd creates the control command, which drives a running
// camnode over NATS.
func CreateControlCmd() *cobra.Command {
	var url, reason string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:       "control {start|stop} DEVICE-ID",
		Short:     "Start or stop acquisition on a running camnode",
		Long:      `Sends a request on camnode.control.<device-id>.<action> and waits for the reply.`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{nats.ActionStart, nats.ActionStop},
		RunE: func(cmd *cobra.Command, args []string) error {
			action, deviceID := args[0], args[1]

			r, err := nats.NewRequester(url, timeout)
			if err != nil {
				return err
			}
			defer r.Close()

			switch action {
			case nats.ActionStart:
				err = r.Start(deviceID, reason)
			case nats.ActionStop:
				err = r.Stop(deviceID, reason)
			default:
				return fmt.Errorf("unknown action %q, expected start or stop", action)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: ok\n", action, deviceID)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "nats-url", "nats://127.0.0.1:4222", "NATS server URL")
	cmd.Flags().StringVar(&reason, "reason", "cli", "Reason recorded with the state change")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "Reply timeout")
	return cmd
}
