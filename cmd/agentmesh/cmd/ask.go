package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/habiliai/agentmesh/network"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	flags := &struct {
		timeout time.Duration
	}{}

	cmd := &cobra.Command{
		Use:   "ask <agent-url> <message>",
		Short: "Send one task to a running agent and print its answer",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := network.NewRemoteAgentClient(
				network.WithTimeouts(network.DefaultTimeouts().WithRequest(flags.timeout)),
			)

			res := client.CreateTask(cmd.Context(), args[0], strings.Join(args[1:], " "))
			fmt.Fprintln(cmd.OutOrStdout(), res.Text())

			return res.Err
		},
	}

	cmd.Flags().DurationVar(&flags.timeout, "timeout", network.DefaultRequestTimeout, "Request timeout")

	return cmd
}
