// Command streamd-client connects to a streamd-server, completes the
// discovery and private-key handshakes, and runs the receive-side media
// pipeline: decode video/audio, render, and relay clipboard changes back
// to the server.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skylinewire/streamd/internal/clipboard"
	"github.com/skylinewire/streamd/internal/config"
	"github.com/skylinewire/streamd/internal/control"
	"github.com/skylinewire/streamd/internal/logging"
	"github.com/skylinewire/streamd/internal/mediaclient"
	"github.com/skylinewire/streamd/internal/secmem"
	"github.com/skylinewire/streamd/internal/session"
	"github.com/skylinewire/streamd/internal/transport"
	"github.com/skylinewire/streamd/internal/wire"
)

var version = "0.1.0"

var (
	cfgFile          string
	width, height    int
	bitrate          int
	codec            string
	privateKeyHex    string
	user             string
	environment      string
	icon             string
	connectionMethod string
	ports            string
	name             string
	useCI            bool
	spin             bool
	logFile          string
)

var log = logging.L("main")

const stunServer = "52.5.240.234:48800"

var rootCmd = &cobra.Command{
	Use:   "streamd-client [server-address]",
	Short: "streamd remote-desktop client",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runClient(args[0])
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("streamd-client v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	rootCmd.Flags().IntVar(&width, "width", 0, "requested capture width")
	rootCmd.Flags().IntVar(&height, "height", 0, "requested capture height")
	rootCmd.Flags().IntVar(&bitrate, "bitrate", 0, "target bitrate in bits/sec")
	rootCmd.Flags().StringVar(&codec, "codec", "", "h264 or h265")
	rootCmd.Flags().StringVar(&privateKeyHex, "private-key", "", "shared secret, 16 bytes as hex")
	rootCmd.Flags().StringVar(&user, "user", "", "user email")
	rootCmd.Flags().StringVar(&environment, "environment", "", "production, staging, or dev")
	rootCmd.Flags().StringVar(&icon, "icon", "", "path to a PNG window icon")
	rootCmd.Flags().StringVar(&connectionMethod, "connection-method", "", "STUN or DIRECT")
	rootCmd.Flags().StringVar(&ports, "ports", "", "port mapping overrides, N:M[.N:M...]")
	rootCmd.Flags().StringVar(&name, "name", "", "window title")
	rootCmd.Flags().BoolVar(&useCI, "use_ci", false, "run in CI mode")
	rootCmd.Flags().BoolVar(&spin, "spin", false, "read further key?value arguments from stdin until EOF")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "also write logs to this rotating file, alongside stdout")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging(cfg *config.ClientConfig) {
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

func runClient(serverAddress string) {
	cfg, err := config.LoadClient(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.ServerAddress = serverAddress
	applyFlagOverrides(cfg)
	if spin {
		applyStdinOverrides(cfg)
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

	log.Info("connecting to server", "address", cfg.ServerAddress, "user", cfg.User)

	reply, err := session.DialDiscovery(cfg.ServerAddress, control.DiscoveryRequest{
		Username:  cfg.Name,
		UserEmail: cfg.User,
	}, 5*time.Second)
	if err != nil {
		log.Error("discovery handshake failed", "error", err)
		os.Exit(1)
	}
	log.Info("admitted", "clientId", reply.ClientID, "connectionId", reply.ConnectionID)

	host, _, _ := strings.Cut(cfg.ServerAddress, ":")
	useSTUN := strings.EqualFold(cfg.ConnectionMethod, "stun")

	udp, err := transport.CreateUDP(transport.Options{
		Role:             transport.RoleClient,
		Destination:      fmt.Sprintf("%s:%d", host, reply.UDPPort),
		HandshakeTimeout: 5 * time.Second,
		RecvTimeout:      time.Second,
		UseSTUN:          useSTUN,
		STUNServer:       stunServer,
		Key:              secureKey.Bytes(),
	})
	if err != nil {
		log.Error("udp handshake failed", "error", err)
		os.Exit(1)
	}
	defer udp.Destroy()

	tcp, err := transport.CreateTCP(transport.Options{
		Role:             transport.RoleClient,
		Destination:      fmt.Sprintf("%s:%d", host, reply.TCPPort),
		HandshakeTimeout: 5 * time.Second,
		RecvTimeout:      time.Second,
		Key:              secureKey.Bytes(),
	})
	if err != nil {
		log.Error("tcp handshake failed", "error", err)
		os.Exit(1)
	}
	defer tcp.Destroy()

	clip := clipboard.NewSynchronizer(&clipboard.NopProvider{}, 500*time.Millisecond, func(c clipboard.Content) {
		body, err := control.EncodeServer(control.ClipboardToServer{Content: c})
		if err != nil {
			return
		}
		_ = tcp.SendPacket(wire.Packet{Type: wire.PacketMessage, Data: body})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clip.Start(ctx)
	defer clip.Stop()

	client := mediaclient.NewClient(udp, tcp, nil, clip, true)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		client.Run(stop)
		close(done)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info("streamd-client is running")
	select {
	case <-sigChan:
		log.Info("shutting down on signal")
	case <-done:
		log.Info("connection closed by server")
	}

	close(stop)
	client.Stop()
	cancel()
	log.Info("streamd-client stopped")
}

func applyFlagOverrides(cfg *config.ClientConfig) {
	if width > 0 {
		cfg.Width = width
	}
	if height > 0 {
		cfg.Height = height
	}
	if bitrate > 0 {
		cfg.Bitrate = bitrate
	}
	if codec != "" {
		cfg.Codec = codec
	}
	if privateKeyHex != "" {
		cfg.PrivateKeyHex = privateKeyHex
	}
	if user != "" {
		cfg.User = user
	}
	if environment != "" {
		cfg.Environment = environment
	}
	if icon != "" {
		cfg.Icon = icon
	}
	if connectionMethod != "" {
		cfg.ConnectionMethod = connectionMethod
	}
	if ports != "" {
		cfg.Ports = ports
	}
	if name != "" {
		cfg.Name = name
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	cfg.UseCI = cfg.UseCI || useCI
}

// applyStdinOverrides implements --spin: read further "key?value" lines from
// standard input until EOF, each overriding the matching config field. This
// lets a parent process hand the client late-bound parameters (e.g. a
// freshly issued private key) without them appearing in argv.
func applyStdinOverrides(cfg *config.ClientConfig) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		key, value, ok := strings.Cut(line, "?")
		if !ok {
			continue
		}
		switch key {
		case "private-key":
			cfg.PrivateKeyHex = value
		case "user":
			cfg.User = value
		case "name":
			cfg.Name = value
		case "environment":
			cfg.Environment = value
		case "codec":
			cfg.Codec = value
		}
	}
}
