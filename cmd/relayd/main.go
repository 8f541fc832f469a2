package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relaydesk/fabric/internal/audit"
	"github.com/relaydesk/fabric/internal/config"
	"github.com/relaydesk/fabric/internal/logging"
	"github.com/relaydesk/fabric/internal/relay"
)

var version = "0.1.0"
var cfgFile string

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "relayd",
	Short: "Session fabric relay",
	Long:  "relayd brokers remote-desktop sessions between registered devices and enforces admission policy.",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the relay",
	Run: func(cmd *cobra.Command, args []string) {
		runRelay()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("relayd v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/relayfabric/fabric.yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stdout
	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v (logging to stdout)\n", cfg.LogFile, err)
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")
}

func runRelay() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	initLogging(cfg)

	var auditLogger *audit.Logger
	if cfg.AuditEnabled {
		auditLogger, err = audit.NewLogger(config.GetDataDir(), cfg.AuditMaxSizeMB, cfg.AuditMaxBackups)
		if err != nil {
			log.Error("failed to open audit log", "error", err)
			os.Exit(3)
		}
		defer auditLogger.Close()
		auditLogger.Log(audit.EventRelayStart, "", map[string]any{"version": version})
	}

	registry := relay.NewRegistry()

	var bridge *relay.Bridge
	if cfg.Standalone {
		log.Warn("running in standalone mode: admission bridge is an in-memory stub")
		bridge = relay.NewStandaloneBridge()
	} else {
		bridge = &relay.Bridge{
			Auth:      relay.NewHTTPAuth(cfg.AuthServiceURL),
			Directory: relay.NewHTTPDirectory(cfg.DirectoryServiceURL),
			Policy:    relay.NewHTTPPolicy(cfg.PolicyServiceURL),
			Audit:     relay.NewHTTPAudit(cfg.AuditServiceURL),
		}
	}

	relayAddr := fmt.Sprintf("%s:%d", cfg.RelayHost, cfg.RelayPort)
	mgmtAddr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
	server := relay.NewServer(registry, bridge, "default", version, relayAddr, mgmtAddr, auditLogger)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	log.Info("starting relay", "version", version, "relay_addr", relayAddr, "mgmt_addr", mgmtAddr)
	if err := server.Run(ctx); err != nil {
		log.Error("relay server exited with error", "error", err)
		if auditLogger != nil {
			auditLogger.Log(audit.EventRelayStop, "", map[string]any{"error": err.Error()})
		}
		os.Exit(2)
	}

	if auditLogger != nil {
		auditLogger.Log(audit.EventRelayStop, "", map[string]any{})
	}
	log.Info("relay stopped")
}
