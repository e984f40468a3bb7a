// Package cli implements the agentgate command tree.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/AgentGate/AgentGate/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"    _                    _    ____       _       \n" +
		"   / \\   __ _  ___ _ __ | |_ / ___| __ _| |_ ___ \n" +
		"  / _ \\ / _` |/ _ \\ '_ \\| __| |  _ / _` | __/ _ \\\n" +
		" / ___ \\ (_| |  __/ | | | |_| |_| | (_| | ||  __/\n" +
		"/_/   \\_\\__, |\\___|_| |_|\\__|\\____|\\__,_|\\__\\___|\n" +
		"        |___/                                    \n"
)

var rootCmd = &cobra.Command{
	Use:   "agentgate",
	Short: "AgentGate - agent activity sync and approval gate",
	Long: color.CyanString(logo) +
		"\nReconciles an autonomous agent's event stream into a consistent local model\nand gates risky actions behind human approval.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(exportCmd)
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("agentgate %s\n", version)
	},
}
