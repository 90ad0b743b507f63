// Command tether-client connects to a TCP peer and exchanges messages.
//
// Lines typed at the prompt are sent to the peer; everything the peer
// sends is printed. With -framing every line is one length-prefixed
// message.
//
// Usage:
//
//	tether-client [flags] [host:port]
//
// Flags:
//
//	-config string        YAML configuration file
//	-framing              Use length-prefixed framing
//	-tls                  Enable TLS
//	-ca string            CA certificate file (PEM)
//	-cert string          Client certificate file (PEM)
//	-key string           Client key file (PEM)
//	-server-name string   Expected server name
//	-insecure             Accept certificates that fail validation
//	-alpn string          Comma separated ALPN protocols
//	-mdns                 Resolve the peer over mDNS
//	-service string       mDNS service type (default "_tether._tcp")
//	-instance string      mDNS instance name
//	-reconnect            Reconnect with backoff when the connection drops
//	-protocol-log string  Write protocol events to this file
//	-hex                  Print received data as hex
//	-interactive          Read commands from a terminal prompt (default true)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-version              Print version and exit
//
// With TLS enabled and no -alpn, the client offers the ALPN identifier of
// the current protocol version (tether/1) and drops peers that choose
// another major version.
//
// Examples:
//
//	# Plain line-oriented session
//	tether-client 127.0.0.1:7000
//
//	# Framed TLS session with mutual authentication
//	tether-client -framing -tls -ca ca.pem -cert me.pem -key me.key peer.local:7443
//
//	# Find the peer over mDNS and keep reconnecting
//	tether-client -mdns -instance rack-7 -reconnect -framing
//
//	# Everything from a config file, capture the protocol
//	tether-client -config client.yaml -protocol-log session.tlog
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tether-io/tether-go/cmd/tether-client/interactive"
	"github.com/tether-io/tether-go/pkg/config"
	"github.com/tether-io/tether-go/pkg/connection"
	"github.com/tether-io/tether-go/pkg/discovery"
	"github.com/tether-io/tether-go/pkg/log"
	"github.com/tether-io/tether-go/pkg/transport"
	"github.com/tether-io/tether-go/pkg/version"
)

// Options holds the command-line flags.
type Options struct {
	ConfigFile  string
	Framing     bool
	TLS         bool
	CAFile      string
	CertFile    string
	KeyFile     string
	ServerName  string
	Insecure    bool
	ALPN        string
	MDNS        bool
	Service     string
	Instance    string
	Reconnect   bool
	ProtocolLog string
	Hex         bool
	Interactive bool
	LogLevel    string
	Version     bool
}

var opts Options

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "YAML configuration file")
	flag.BoolVar(&opts.Framing, "framing", false, "Use length-prefixed framing")
	flag.BoolVar(&opts.TLS, "tls", false, "Enable TLS")
	flag.StringVar(&opts.CAFile, "ca", "", "CA certificate file (PEM)")
	flag.StringVar(&opts.CertFile, "cert", "", "Client certificate file (PEM)")
	flag.StringVar(&opts.KeyFile, "key", "", "Client key file (PEM)")
	flag.StringVar(&opts.ServerName, "server-name", "", "Expected server name")
	flag.BoolVar(&opts.Insecure, "insecure", false, "Accept certificates that fail validation")
	flag.StringVar(&opts.ALPN, "alpn", "", "Comma separated ALPN protocols")
	flag.BoolVar(&opts.MDNS, "mdns", false, "Resolve the peer over mDNS")
	flag.StringVar(&opts.Service, "service", discovery.DefaultService, "mDNS service type")
	flag.StringVar(&opts.Instance, "instance", "", "mDNS instance name")
	flag.BoolVar(&opts.Reconnect, "reconnect", false, "Reconnect with backoff when the connection drops")
	flag.StringVar(&opts.ProtocolLog, "protocol-log", "", "Write protocol events to this file")
	flag.BoolVar(&opts.Hex, "hex", false, "Print received data as hex")
	flag.BoolVar(&opts.Interactive, "interactive", true, "Read commands from a terminal prompt")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&opts.Version, "version", false, "Print version and exit")
}

func main() {
	flag.Parse()

	if opts.Version {
		fmt.Printf("tether-client %s (protocol %s)\n", version.Build, version.Current)
		return
	}

	file, err := buildFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var out io.Writer = os.Stdout
	var session *interactive.Session
	st := &status{}
	if opts.Interactive {
		session, err = interactive.New(interactive.Options{
			Framing: file.Framing,
			Status:  st.String,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		// Route output through readline to avoid interfering with input
		out = session.Stdout()
	}

	logger := setupLogging(out, opts.LogLevel)
	if err := run(ctx, cancel, file, logger, out, session, st); err != nil {
		logger.Error("client failed", "error", err)
		if session != nil {
			session.Close()
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cancel context.CancelFunc, file *config.File, logger *slog.Logger,
	out io.Writer, session *interactive.Session, st *status) error {
	clientCfg, err := file.ClientConfig()
	if err != nil {
		return err
	}
	clientCfg.Logger = logger

	protocolLogger, closeLog, err := setupProtocolLog(file.ProtocolLog, logger)
	if err != nil {
		return err
	}
	defer closeLog()
	clientCfg.ProtocolLogger = protocolLogger

	p := &printer{out: out, hex: opts.Hex, logger: logger}

	var sender interactive.Sender
	supervised := make(chan struct{})
	if file.ReconnectEnabled() {
		supCfg := file.SupervisorConfig(clientCfg)
		supCfg.Dispatcher = p
		supCfg.Logger = logger
		supCfg.OnStateChange = func(oldState, newState connection.State) {
			logger.Debug("supervisor state", "from", oldState, "to", newState)
		}
		sup, err := connection.NewSupervisor(supCfg)
		if err != nil {
			return err
		}
		st.supervisor = sup

		go func() {
			defer close(supervised)
			if err := sup.Run(ctx); err != nil {
				logger.Error("giving up", "error", err)
			}
			cancel()
		}()
		sender = sup
	} else {
		close(supervised)

		remote := file.Remote
		if bc, ok := file.BrowseConfig(); ok && remote == "" {
			logger.Info("resolving peer", "service", bc.Service, "instance", bc.Instance)
			remote, err = discovery.Resolve(ctx, bc)
			if err != nil {
				return err
			}
		}

		client, err := transport.NewClient(remote, p, clientCfg)
		if err != nil {
			return err
		}
		st.client = client

		if err := client.Connect(ctx); err != nil {
			return err
		}
		defer func() {
			client.Close()
			<-client.Done()
		}()

		go func() {
			<-client.Done()
			cancel()
		}()
		sender = client
	}

	if session != nil {
		session.SetSender(sender)
		go session.Run(ctx, cancel)
	} else {
		go pipeStdin(ctx, sender, file.Framing, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	<-supervised
	return nil
}

// buildFile loads the configuration file, if any, and applies flags
// given on the command line on top of it.
func buildFile() (*config.File, error) {
	file := &config.File{}
	if opts.ConfigFile != "" {
		f, err := config.Load(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		file = f
	}

	if flag.NArg() > 0 {
		file.Remote = flag.Arg(0)
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["framing"] {
		file.Framing = opts.Framing
	}
	if set["protocol-log"] {
		file.ProtocolLog = opts.ProtocolLog
	}

	if set["tls"] || set["ca"] || set["cert"] || set["key"] || set["server-name"] || set["insecure"] || set["alpn"] {
		if file.TLS == nil {
			file.TLS = &config.TLS{}
		}
		t := file.TLS
		t.Enabled = t.Enabled || opts.TLS
		if opts.CAFile != "" {
			t.CAFile = opts.CAFile
		}
		if opts.CertFile != "" {
			t.CertFile = opts.CertFile
		}
		if opts.KeyFile != "" {
			t.KeyFile = opts.KeyFile
		}
		if opts.ServerName != "" {
			t.ServerName = opts.ServerName
		}
		if set["insecure"] {
			t.BypassCertificateErrors = opts.Insecure
		}
		if opts.ALPN != "" {
			t.ALPN = strings.Split(opts.ALPN, ",")
		}
	}
	if file.TLS != nil && file.TLS.Enabled && len(file.TLS.ALPN) == 0 {
		file.TLS.ALPN = version.SupportedALPN()
	}

	if opts.MDNS || set["instance"] {
		if file.Discovery == nil {
			file.Discovery = &config.Discovery{}
		}
		if set["service"] || file.Discovery.Service == "" {
			file.Discovery.Service = opts.Service
		}
		if opts.Instance != "" {
			file.Discovery.Instance = opts.Instance
		}
		if flag.NArg() == 0 {
			file.Remote = ""
		}
	}

	if set["reconnect"] {
		if file.Reconnect == nil {
			file.Reconnect = &config.Reconnect{}
		}
		file.Reconnect.Enabled = opts.Reconnect
	}

	if err := file.Validate(); err != nil {
		return nil, err
	}
	return file, nil
}

func setupLogging(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// setupProtocolLog builds the protocol event sink: a capture file when
// path is set, plus the console at debug level.
func setupProtocolLog(path string, logger *slog.Logger) (log.Logger, func(), error) {
	var sinks []log.Logger
	if path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return nil, nil, fmt.Errorf("protocol log: %w", err)
		}
		sinks = append(sinks, fl)
		logger.Info("protocol log enabled", "path", path)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		sinks = append(sinks, log.NewSlogAdapter(logger))
	}

	if len(sinks) == 0 {
		return log.NoopLogger{}, func() {}, nil
	}
	m := log.NewMultiLogger(sinks...)
	return m, func() {
		if err := m.Close(); err != nil {
			logger.Warn("closing protocol log", "error", err)
		}
	}, nil
}

// pipeStdin sends each line read from stdin.
func pipeStdin(ctx context.Context, sender interactive.Sender, framing bool, logger *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		cmd, err := interactive.ParseLine(scanner.Text(), framing)
		if err != nil || cmd.Kind != interactive.KindSend {
			continue
		}
		if err := sender.Send(cmd.Payload); err != nil {
			logger.Warn("send failed", "error", err)
		}
	}
}
