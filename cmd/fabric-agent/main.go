package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaydesk/fabric/internal/capture"
	"github.com/relaydesk/fabric/internal/clipboard"
	"github.com/relaydesk/fabric/internal/config"
	"github.com/relaydesk/fabric/internal/input"
	"github.com/relaydesk/fabric/internal/logging"
	"github.com/relaydesk/fabric/internal/session"
	"github.com/relaydesk/fabric/internal/transfer"
)

var version = "0.1.0"
var cfgFile string

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "fabric-agent",
	Short: "Session fabric client agent",
	Long:  "fabric-agent registers with a relay, streams captured frames, and applies inbound input/clipboard/transfer events.",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the relay and start the session engine",
	Run: func(cmd *cobra.Command, args []string) {
		runAgent()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fabric-agent v%s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a notice that connection state is only visible in the running agent's logs",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("status: not running in this process (use the running agent's logs)")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/relayfabric/fabric.yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
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

func runAgent() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	initLogging(cfg)

	if cfg.DeviceID == "" {
		log.Error("device_id not configured")
		os.Exit(1)
	}

	inputHandler, err := input.New()
	if err != nil {
		log.Warn("input synthesis unavailable on this platform", "error", err)
		inputHandler = nil
	}

	capturer, err := capture.New(capture.DefaultConfig())
	if err != nil {
		log.Warn("screen capture unavailable on this platform", "error", err)
		capturer = nil
	} else if err := capturer.Start(); err != nil {
		log.Warn("failed to start capturer", "error", err)
		capturer = nil
	}

	xferEngine := transfer.NewEngine(cfg.TransferDownloadDir, cfg.TransferChunkBytes)
	clipProvider := clipboard.NewProvider()

	relayURL := fmt.Sprintf("ws://%s:%d/", cfg.RelayHost, cfg.RelayPort)
	engine := session.New(session.Config{
		RelayURL:             relayURL,
		DeviceID:             cfg.DeviceID,
		AuthToken:            cfg.AuthToken,
		Platform:             platformName(),
		MaxReconnectAttempts: cfg.RelayMaxReconnectAttempts,
		ReconnectDelay:       time.Duration(cfg.RelayReconnectDelaySecs) * time.Second,
		KeepaliveInterval:    time.Duration(cfg.RelayKeepaliveIntervalSecs) * time.Second,
		KeepaliveTimeout:     time.Duration(cfg.RelayKeepaliveTimeoutSecs) * time.Second,
		CaptureTargetFPS:     cfg.CaptureTargetFPS,
		AutoAcceptTransfers:  false,
	}, inputHandler, capturer, xferEngine, nil, nil)

	engine.SetClipboardSync(clipboard.NewSync(engine, clipProvider))

	engine.OnStateChange(func(s session.ConnState) {
		log.Info("connection state changed", "state", s.String())
	})

	engine.Start()
	log.Info("fabric-agent started", "version", version, "device_id", cfg.DeviceID, "relay", relayURL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received")
	engine.Stop()
	if capturer != nil {
		capturer.Stop()
	}
	if inputHandler != nil {
		inputHandler.Close()
	}
}

func platformName() string {
	return runtime.GOOS
}
