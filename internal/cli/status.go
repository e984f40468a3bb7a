package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/AgentGate/AgentGate/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("AgentGate Status")

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config warning: %v (using defaults)\n", err)
		}
		if path, err := config.ConfigPath(); err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				fmt.Println("Config:  " + color.GreenString("found") + " (" + path + ")")
			} else {
				fmt.Println("Config:  " + color.YellowString("not found") + " (defaults active)")
			}
		}

		status, err := fetchStatus(cfg)
		if err != nil {
			fmt.Println("Daemon:  " + color.RedString("unreachable") + " (" + err.Error() + ")")
			return
		}
		fmt.Println("Daemon:  " + color.GreenString("running"))
		fmt.Printf("Agents:            %d\n", status.Agents)
		fmt.Printf("Tasks:             %d\n", status.Tasks)
		fmt.Printf("Actions:           %d\n", status.Actions)
		fmt.Printf("Pending approvals: %d\n", status.PendingApprovals)
		if status.WorkflowHash != "" {
			fmt.Printf("Workflow:          %s\n", status.WorkflowHash)
		}
		fmt.Printf("Tokens:            %d ($%.4f)\n", status.Metrics.Tokens, status.Metrics.CostUSD)
	},
}

type daemonStatus struct {
	Agents           int    `json:"agents"`
	Tasks            int    `json:"tasks"`
	Actions          int    `json:"actions"`
	PendingApprovals int    `json:"pendingApprovals"`
	WorkflowHash     string `json:"workflowHash"`
	Metrics          struct {
		Tokens  int64   `json:"tokens"`
		CostUSD float64 `json:"costUsd"`
	} `json:"metrics"`
}

func fetchStatus(cfg config.Config) (daemonStatus, error) {
	var out daemonStatus
	client := &http.Client{Timeout: 3 * time.Second}
	req, err := http.NewRequest(http.MethodGet, "http://"+cfg.Gateway.ListenAddr+"/api/v1/status", nil)
	if err != nil {
		return out, err
	}
	if cfg.Gateway.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Gateway.Token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("status %d", resp.StatusCode)
	}
	err = json.NewDecoder(resp.Body).Decode(&out)
	return out, err
}
