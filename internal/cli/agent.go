package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodeforge/nodeforge/internal/agentrpc"
)

var (
	agentServerID string
	agentAddr     string
	agentParams   string
	agentTimeout  time.Duration
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Talk to a deployed control agent",
}

var agentCallCmd = &cobra.Command{
	Use:   "call <method>",
	Short: "Invoke a JSON-RPC method on an agent",
	Long: `Invokes a single JSON-RPC method on a deployed agent and prints the
result as indented JSON. Parameters are passed as a JSON object via
--params.

Examples:
  nodeforge agent call agent.ping --server web-1
  nodeforge agent call docker.listContainers --server web-1 --params '{"all":true}'
  nodeforge agent call docker.stopContainer --server web-1 --params '{"container_id":"abc123","timeout":30}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		method := args[0]

		addr, err := resolveAgentAddr()
		if err != nil {
			return err
		}

		var params any
		if agentParams != "" {
			if err := json.Unmarshal([]byte(agentParams), &params); err != nil {
				return fmt.Errorf("invalid --params JSON: %w", err)
			}
		}

		client, err := agentrpc.Dial(addr, agentTimeout)
		if err != nil {
			return fmt.Errorf("failed to reach agent at %s: %w", addr, err)
		}
		defer client.Close()

		var result json.RawMessage
		if err := client.Call(method, params, &result); err != nil {
			return err
		}

		pretty, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(pretty))
		return nil
	},
}

func init() {
	agentCallCmd.Flags().StringVar(&agentServerID, "server", "", "Server id whose agent to call")
	agentCallCmd.Flags().StringVar(&agentAddr, "addr", "", "Agent address, overrides --server")
	agentCallCmd.Flags().StringVar(&agentParams, "params", "", "JSON object of method parameters")
	agentCallCmd.Flags().DurationVar(&agentTimeout, "timeout", 10*time.Second, "Dial timeout")

	agentCmd.AddCommand(agentCallCmd)
}

// resolveAgentAddr derives the agent endpoint either from --addr or from
// the server's host combined with the configured agent listen port.
func resolveAgentAddr() (string, error) {
	if agentAddr != "" {
		return agentAddr, nil
	}
	if agentServerID == "" {
		return "", fmt.Errorf("either --server or --addr is required")
	}

	config, err := loadConfig()
	if err != nil {
		return "", err
	}
	server, err := findServer(config, agentServerID)
	if err != nil {
		return "", err
	}

	_, port, err := net.SplitHostPort(config.Agent.ListenAddr)
	if err != nil {
		return "", fmt.Errorf("invalid agent listen address %q: %w", config.Agent.ListenAddr, err)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid agent port %q: %w", port, err)
	}

	return net.JoinHostPort(server.Host, port), nil
}
