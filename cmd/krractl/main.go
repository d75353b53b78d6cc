// Command krractl is the operator CLI for a coordinator: deploy and list
// agents, inspect nodes, submit and track jobs, all via the Admin HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type clientConfig struct {
	host  string
	port  int
	token string
}

func (c clientConfig) baseURL() string {
	return fmt.Sprintf("http://%s:%d", c.host, c.port)
}

func (c clientConfig) do(method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.baseURL()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	client := &http.Client{Timeout: 15 * time.Second}
	return client.Do(req)
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errBody map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return fmt.Errorf("server returned %s: %s", resp.Status, errBody["error"])
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func newRootCmd() *cobra.Command {
	cfg := clientConfig{}

	root := &cobra.Command{
		Use:           "krractl",
		Short:         "Operator CLI for the coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfg.host, "host", "h", "localhost", "coordinator Admin API host")
	root.PersistentFlags().IntVarP(&cfg.port, "port", "p", 8080, "coordinator Admin API port")
	root.PersistentFlags().StringVar(&cfg.token, "token", os.Getenv("KRRACTL_TOKEN"), "operator session token (defaults to KRRACTL_TOKEN)")

	root.AddCommand(
		newLoginCmd(&cfg),
		newAgentDeployCmd(&cfg),
		newAgentListCmd(&cfg),
		newNodeListCmd(&cfg),
		newJobSubmitCmd(&cfg),
		newJobListCmd(&cfg),
		newJobCancelCmd(&cfg),
		newInspectCmd(&cfg),
	)
	return root
}

func newLoginCmd(cfg *clientConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "login [passphrase]",
		Short: "Exchange the operator passphrase for a session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := cfg.do(http.MethodPost, "/api/auth/login", map[string]string{"passphrase": args[0]})
			if err != nil {
				return err
			}
			var out struct {
				Token string `json:"token"`
			}
			if err := decodeJSON(resp, &out); err != nil {
				return err
			}
			fmt.Println(out.Token)
			return nil
		},
	}
}

func newAgentDeployCmd(cfg *clientConfig) *cobra.Command {
	var agentID, name, kind, version, description string

	cmd := &cobra.Command{
		Use:   "agent:deploy <path>",
		Short: "Register an agent version whose module locator is the given path (the file is not read)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			locator := args[0]
			resp, err := cfg.do(http.MethodPost, "/api/agents", map[string]any{
				"agentId":       agentID,
				"name":          name,
				"type":          kind,
				"version":       version,
				"description":   description,
				"moduleLocator": locator,
			})
			if err != nil {
				return err
			}
			var out map[string]bool
			if err := decodeJSON(resp, &out); err != nil {
				return err
			}
			if !out["success"] {
				return fmt.Errorf("agent deploy rejected")
			}
			fmt.Println("deployed")
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent-id", "", "existing agent id to version, empty to create new")
	cmd.Flags().StringVar(&name, "name", "", "agent name")
	cmd.Flags().StringVar(&kind, "type", "custom", "agent kind: analyzer, transformer, validator, coordinator, custom")
	cmd.Flags().StringVar(&version, "version", "1.0.0", "semantic version")
	cmd.Flags().StringVar(&description, "description", "", "agent description")
	return cmd
}

func newAgentListCmd(cfg *clientConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "agent:list",
		Short: "List every registered agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := cfg.do(http.MethodGet, "/api/agents", nil)
			if err != nil {
				return err
			}
			var out struct {
				Agents []map[string]any `json:"agents"`
			}
			if err := decodeJSON(resp, &out); err != nil {
				return err
			}
			for _, a := range out.Agents {
				fmt.Printf("%-36s %-20s %-10s %s\n", a["agentId"], a["name"], a["version"], a["status"])
			}
			return nil
		},
	}
}

func newNodeListCmd(cfg *clientConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "node:list",
		Short: "List every known node",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := cfg.do(http.MethodGet, "/api/nodes", nil)
			if err != nil {
				return err
			}
			var out struct {
				Nodes []map[string]any `json:"nodes"`
			}
			if err := decodeJSON(resp, &out); err != nil {
				return err
			}
			for _, n := range out.Nodes {
				fmt.Printf("%-36s %-20s %s\n", n["nodeId"], n["hostname"], n["status"])
			}
			return nil
		},
	}
}

func newJobSubmitCmd(cfg *clientConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "job:submit <agentId> <inputFile>",
		Short: "Submit a job for routing to a capable node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read input file: %w", err)
			}
			resp, err := cfg.do(http.MethodPost, "/api/jobs", map[string]any{
				"agentId": args[0],
				"input":   string(input),
			})
			if err != nil {
				return err
			}
			var out struct {
				JobID string `json:"jobId"`
			}
			if err := decodeJSON(resp, &out); err != nil {
				return err
			}
			fmt.Println(out.JobID)
			return nil
		},
	}
}

func newJobListCmd(cfg *clientConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "job:list",
		Short: "List every known job and its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := cfg.do(http.MethodGet, "/api/jobs", nil)
			if err != nil {
				return err
			}
			var out struct {
				Jobs []map[string]any `json:"jobs"`
			}
			if err := decodeJSON(resp, &out); err != nil {
				return err
			}
			for _, j := range out.Jobs {
				fmt.Printf("%-36s %-20s %s\n", j["jobId"], j["agentId"], j["status"])
			}
			return nil
		},
	}
}

func newJobCancelCmd(cfg *clientConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "job:cancel <jobId>",
		Short: "Cancel a pending or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := cfg.do(http.MethodPost, "/api/jobs/"+args[0]+"/cancel", nil)
			if err != nil {
				return err
			}
			var out map[string]bool
			if err := decodeJSON(resp, &out); err != nil {
				return err
			}
			if !out["success"] {
				return fmt.Errorf("job could not be cancelled")
			}
			fmt.Println("cancelled")
			return nil
		},
	}
}

func newInspectCmd(cfg *clientConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <nodeId>",
		Short: "Show a node's record as listed by the Admin API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := cfg.do(http.MethodGet, "/api/nodes", nil)
			if err != nil {
				return err
			}
			var out struct {
				Nodes []map[string]any `json:"nodes"`
			}
			if err := decodeJSON(resp, &out); err != nil {
				return err
			}
			for _, n := range out.Nodes {
				if n["nodeId"] == args[0] {
					b, _ := json.MarshalIndent(n, "", "  ")
					fmt.Println(string(b))
					return nil
				}
			}
			return fmt.Errorf("node %s not found", args[0])
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
