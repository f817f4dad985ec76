package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	bridgeConfig "trinobridge/internal/bridge/config"
	"trinobridge/internal/bridge/forward"
	"trinobridge/internal/bridge/handshake"
	"trinobridge/internal/bridge/relay"
	"trinobridge/internal/shared/config"
	"trinobridge/internal/shared/logging"
	"trinobridge/internal/shared/retry"
)

var (
	configFile      string
	transport       string
	listenHost      string
	listenPort      int
	upstreamURL     string
	upstreamTimeout time.Duration
	logLevel        string
	noProbe         bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trinobridge",
		Short: "Trino MCP bridge relay",
		Long:  "Trino MCP bridge relay - exposes a local JSON-RPC transport and forwards requests to the Trino MCP gateway",
		RunE:  runBridge,
	}

	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	rootCmd.Flags().StringVar(&transport, "transport", "", "Listening transport (stdio, tcp, ws)")
	rootCmd.Flags().StringVar(&listenHost, "listen-host", "", "Listen host for socket transports")
	rootCmd.Flags().IntVar(&listenPort, "listen-port", -1, "Listen port for socket transports (0 for ephemeral)")
	rootCmd.Flags().StringVar(&upstreamURL, "upstream-url", "", "Upstream JSON-RPC endpoint URL")
	rootCmd.Flags().DurationVar(&upstreamTimeout, "upstream-timeout", 0, "Timeout per upstream call")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&noProbe, "no-probe", false, "Skip the upstream health probe at startup")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runBridge(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger("bridge")

	// Build configuration overrides from CLI flags
	overrides := make(map[string]interface{})
	if transport != "" {
		overrides["transport"] = transport
	}
	if listenHost != "" {
		overrides["listen_host"] = listenHost
	}
	if listenPort >= 0 {
		overrides["listen_port"] = listenPort
	}
	if upstreamURL != "" {
		overrides["upstream_url"] = upstreamURL
	}
	if upstreamTimeout != 0 {
		overrides["upstream_timeout"] = upstreamTimeout
	}
	if logLevel != "" {
		overrides["log_level"] = logLevel
	}
	if cmd.Flags().Changed("no-probe") {
		overrides["probe_upstream"] = !noProbe
	}

	cfg, err := config.LoadConfig[bridgeConfig.Config](configFile, overrides)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.SetLevel(cfg.LogLevel)
	logger.Info("Starting bridge relay",
		"transport", cfg.Transport,
		"upstream", cfg.UpstreamURL,
		"log_level", cfg.LogLevel)

	forwarder := forward.NewForwarder(cfg.UpstreamURL, cfg.UpstreamTimeout)

	// The probe is advisory: the upstream may come up after the bridge
	if cfg.ProbeUpstream {
		probeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := retry.Execute(probeCtx, retry.DefaultConfig(), func() error {
			return forwarder.Probe(probeCtx)
		})
		cancel()
		if err != nil {
			logger.Warn("Upstream health probe failed", "error", err.Error())
		} else {
			logger.Info("Upstream is healthy", "upstream", cfg.UpstreamURL)
		}
	}

	responder := handshake.NewResponder(cfg.Methods)
	listener := relay.New(cfg, forwarder, responder)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := listener.Start(); err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, stopping bridge...")
	case <-listener.Done():
		logger.Info("Input closed, stopping bridge...")
	}

	if err := listener.Shutdown(); err != nil {
		logger.Error("Error stopping relay", err)
	}

	logger.Info("Bridge stopped")
	return nil
}
