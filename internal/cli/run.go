package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AgentGate/AgentGate/internal/config"
	"github.com/AgentGate/AgentGate/internal/gateway"
	"github.com/AgentGate/AgentGate/internal/session"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the activity sync daemon",
	Run:   runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) {
	printHeader("AgentGate Daemon")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config warning: %v (using defaults)\n", err)
	}

	sess, err := session.New(cfg, session.Options{})
	if err != nil {
		fmt.Printf("Session error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sess.Start(ctx); err != nil {
		fmt.Printf("Start error: %v\n", err)
		os.Exit(1)
	}

	var gw *gateway.Server
	if cfg.Gateway.Enabled {
		gw = gateway.New(sess, cfg.Gateway.Token)
		go func() {
			if err := gw.ListenAndServe(cfg.Gateway.ListenAddr); err != nil {
				fmt.Printf("Gateway error: %v\n", err)
			}
		}()
		fmt.Printf("Gateway:   http://%s\n", cfg.Gateway.ListenAddr)
	}
	fmt.Printf("Transport: %s\n", cfg.Transport.Kind)
	fmt.Printf("Backend:   %s\n", cfg.Backend.BaseURL)
	fmt.Println("Press Ctrl+C to stop.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("\nShutting down...")
	cancel()
	if gw != nil {
		_ = gw.Shutdown()
	}
	if err := sess.Close(); err != nil {
		fmt.Printf("Shutdown error: %v\n", err)
	}
}
