// Command streamd-server runs the capture/encode/broadcast side of the
// remote-desktop protocol: it admits clients over a discovery handshake,
// opens their per-slot UDP/TCP contexts, and streams a shared capture
// pipeline out to every active client.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skylinewire/streamd/internal/clipboard"
	"github.com/skylinewire/streamd/internal/config"
	"github.com/skylinewire/streamd/internal/control"
	"github.com/skylinewire/streamd/internal/logging"
	"github.com/skylinewire/streamd/internal/mediaserver"
	"github.com/skylinewire/streamd/internal/secmem"
	"github.com/skylinewire/streamd/internal/session"
	"github.com/skylinewire/streamd/internal/wire"
	"github.com/skylinewire/streamd/internal/workerpool"
)

var version = "0.1.0"

var (
	cfgFile       string
	privateKeyHex string
	identifier    string
	webserverURL  string
	logFile       string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "streamd-server",
	Short: "streamd remote-desktop server",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start capturing and streaming the desktop",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("streamd-server v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/streamd/streamd-server.yaml)")
	rootCmd.PersistentFlags().StringVar(&privateKeyHex, "private-key", "", "shared secret, 16 bytes as hex")
	rootCmd.PersistentFlags().StringVar(&identifier, "identifier", "", "opaque session identifier")
	rootCmd.PersistentFlags().StringVar(&webserverURL, "webserver", "", "status/parameter reporting URL")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this rotating file, alongside stdout")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging(cfg *config.ServerConfig) {
	var output io.Writer = os.Stdout
	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, 10, 3)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %q: %v\n", cfg.LogFile, err)
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")
}

func runServer() {
	cfg, err := config.LoadServer(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if privateKeyHex != "" {
		cfg.PrivateKeyHex = privateKeyHex
	}
	if identifier != "" {
		cfg.Identifier = identifier
	}
	if webserverURL != "" {
		cfg.WebserverURL = webserverURL
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}

	result := cfg.ValidateTiered()
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %v\n", w)
	}
	if result.HasFatals() {
		for _, f := range result.Fatals {
			fmt.Fprintf(os.Stderr, "error: %v\n", f)
		}
		os.Exit(1)
	}

	initLogging(cfg)

	rawKey, err := hex.DecodeString(cfg.PrivateKeyHex)
	if err != nil {
		log.Error("private key is not valid hex", "error", err)
		os.Exit(1)
	}
	secureKey := secmem.NewSecureBytes(rawKey)
	defer secureKey.Zero()

	log.Info("starting streamd-server",
		"version", version,
		"identifier", cfg.Identifier,
		"maxClients", cfg.MaxClients,
	)

	portMap := session.NewPortMapping(cfg.MaxClients, config.DefaultClientUDPPort)
	mgr := session.NewManager(cfg.MaxClients, portMap, secureKey.Bytes())

	pool := workerpool.New(2, 8)
	defer pool.StopAccepting()

	pipeline, err := mediaserver.NewPipeline(mgr, pool, mediaserver.PipelineConfig{
		FPS:     30,
		MinFPS:  10,
		Width:   1920,
		Height:  1080,
		Codec:   mediaserver.CodecH264,
		Bitrate: 4_000_000,
	})
	if err != nil {
		log.Error("failed to build media pipeline", "error", err)
		os.Exit(1)
	}

	clip := clipboard.NewSynchronizer(&clipboard.NopProvider{}, 500*time.Millisecond, func(c clipboard.Content) {
		body, err := control.EncodeClient(control.ClipboardToClient{Content: c})
		if err != nil {
			log.Warn("clipboard encode failed", "error", err)
			return
		}
		mgr.BroadcastTCP(wire.Packet{Type: wire.PacketMessage, Data: body})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clip.Start(ctx)
	defer clip.Stop()

	srv := mediaserver.NewServer(mgr, pipeline, clip, secureKey.Bytes())

	disco, err := session.ListenDiscovery(mgr, int(cfg.DiscoveryPort))
	if err != nil {
		log.Error("failed to bind discovery port", "error", err)
		os.Exit(1)
	}
	disco.OnAdmit(func(idx int, udpPort, tcpPort uint16) {
		if err := srv.AcceptSlot(ctx, idx, udpPort, tcpPort, 5*time.Second); err != nil {
			log.Warn("slot handshake failed", "slot", idx, "error", err)
		}
	})

	stop := make(chan struct{})
	go disco.Serve(stop)
	go mgr.RunLivenessScanner(stop)
	go pipeline.Run(stop)

	exitCheck := time.NewTicker(5 * time.Second)
	defer exitCheck.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info("streamd-server is running", "discoveryPort", cfg.DiscoveryPort)

	for {
		select {
		case <-sigChan:
			log.Info("shutting down on signal")
			shutdown(cancel, stop, disco, pipeline)
			return
		case <-exitCheck.C:
			if mgr.ShouldExit() {
				log.Info("container-exit policy triggered shutdown")
				shutdown(cancel, stop, disco, pipeline)
				return
			}
		}
	}
}

func shutdown(cancel context.CancelFunc, stop chan struct{}, disco *session.DiscoveryServer, pipeline *mediaserver.Pipeline) {
	close(stop)
	disco.Close()
	pipeline.Stop()
	cancel()
	log.Info("streamd-server stopped")
}
