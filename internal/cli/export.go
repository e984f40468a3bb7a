package cli

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AgentGate/AgentGate/internal/config"
)

var exportOutPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the current session as markdown",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config warning: %v (using defaults)\n", err)
		}

		client := &http.Client{Timeout: 10 * time.Second}
		req, err := http.NewRequest(http.MethodGet, "http://"+cfg.Gateway.ListenAddr+"/api/v1/export", nil)
		if err != nil {
			fmt.Printf("Export error: %v\n", err)
			os.Exit(1)
		}
		if cfg.Gateway.Token != "" {
			req.Header.Set("Authorization", "Bearer "+cfg.Gateway.Token)
		}
		resp, err := client.Do(req)
		if err != nil {
			fmt.Printf("Export error: %v (is the daemon running?)\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			fmt.Printf("Export error: status %d\n", resp.StatusCode)
			os.Exit(1)
		}

		out := os.Stdout
		if exportOutPath != "" {
			f, err := os.Create(exportOutPath)
			if err != nil {
				fmt.Printf("Export error: %v\n", err)
				os.Exit(1)
			}
			defer f.Close()
			out = f
		}
		if _, err := io.Copy(out, resp.Body); err != nil {
			fmt.Printf("Export error: %v\n", err)
			os.Exit(1)
		}
		if exportOutPath != "" {
			fmt.Printf("Session exported to %s\n", exportOutPath)
		}
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutPath, "output", "o", "", "Write export to a file instead of stdout")
}
