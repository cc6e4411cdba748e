package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/habiliai/agentmesh/config"
	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/network"
	"github.com/mokiat/gog"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

func newAgentsCmd() *cobra.Command {
	flags := &struct {
		output string
	}{}

	cmd := &cobra.Command{
		Use:   "agents [agent-url ...]",
		Short: "List the discovery documents of remote agents, the built-in ones when no url is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := args
			if len(urls) == 0 {
				defaults, err := config.DefaultAgents()
				if err != nil {
					return err
				}
				urls = gog.Map(defaults, func(ac config.AgentConfig) string {
					card, err := ac.Card()
					if err != nil {
						return ""
					}
					return card.URL
				})
			}

			client := network.NewRemoteAgentClient()
			for _, u := range urls {
				if u != "" {
					client.AddRemoteAgent(u)
				}
			}
			agents := client.ListRemoteAgents(cmd.Context())

			var (
				out []byte
				err error
			)
			switch flags.output {
			case "json":
				out, err = json.MarshalIndent(agents, "", "  ")
			case "yaml":
				out, err = yaml.Marshal(agents)
			default:
				return errors.Wrapf(errors.ErrInvalidParams, "unknown output format %q", flags.output)
			}
			if err != nil {
				return errors.Wrapf(err, "failed to encode agents")
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "json", "Output format: json or yaml")

	return cmd
}
