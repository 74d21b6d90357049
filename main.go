package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/shazow/wifiprov/credentials"
	"github.com/shazow/wifiprov/internal/console"
	"github.com/shazow/wifiprov/internal/log"
	"github.com/shazow/wifiprov/link"
	"github.com/shazow/wifiprov/provision"
	"github.com/shazow/wifiprov/wifi"
)

var (
	// Version is the version of the application. It is set at build time.
	Version string = "dev"
)

type config struct {
	radio             string
	iface             string
	storeDriver       string
	storePath         string
	consolePath       string
	tui               bool
	theme             string
	triggerWindow     time.Duration
	connectTimeout    time.Duration
	pollInterval      time.Duration
	promptTimeout     time.Duration
	superviseInterval time.Duration
	bssidFallback     bool
	logLevel          string
	logFile           string
}

// app is everything a subcommand needs once the backends are up.
type app struct {
	cfg        config
	stdin      io.Reader
	stdout     io.Writer
	logger     *slog.Logger
	env        *link.Env
	connector  *link.Connector
	supervisor *link.Supervisor
}

func newApp(cfg config, radio wifi.Radio, creds *credentials.Store, stdin io.Reader, stdout io.Writer, logger *slog.Logger) *app {
	env := link.NewEnv(radio, creds, stdout, logger)
	connector := link.NewConnector(env, link.ConnectorConfig{
		Timeout:        cfg.connectTimeout,
		PollInterval:   cfg.pollInterval,
		FallbackToSSID: cfg.bssidFallback,
	})
	return &app{
		cfg:        cfg,
		stdin:      stdin,
		stdout:     stdout,
		logger:     logger,
		env:        env,
		connector:  connector,
		supervisor: link.NewSupervisor(env, connector),
	}
}

func (a *app) provisionOptions(startAtScanning bool) provisionOptions {
	return provisionOptions{
		session: provision.Config{
			TriggerWindow:   a.cfg.triggerWindow,
			PromptTimeout:   a.cfg.promptTimeout,
			StartAtScanning: startAtScanning,
		},
		tui:  a.cfg.tui,
		poll: provision.DefaultPollInterval,
	}
}

func setupLogging(level, path string) (*slog.Logger, func() error, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	var w io.Writer = os.Stderr
	closeFn := nopClose
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closeFn = f.Close
	}
	logger := log.Init(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	return logger, closeFn, nil
}

func loadTheme(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return console.LoadTheme(f)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var cfg config
	var (
		rootFlagSet = flag.NewFlagSet("wifiprov", flag.ExitOnError)
		version     = rootFlagSet.Bool("version", false, "display version")
		_           = rootFlagSet.String("config", "", "path to toml config file (env: WIFIPROV_CONFIG)")
	)
	rootFlagSet.StringVar(&cfg.radio, "radio", "networkmanager", "radio backend: networkmanager, wpa or mock")
	rootFlagSet.StringVar(&cfg.iface, "interface", "wlan0", "wireless interface for the wpa radio")
	rootFlagSet.StringVar(&cfg.storeDriver, "store-driver", "bolt", "credential store: bolt, sqlite or memory")
	rootFlagSet.StringVar(&cfg.storePath, "store", "wifiprov.db", "credential store path")
	rootFlagSet.StringVar(&cfg.consolePath, "console", "", "operator console device (default: stdin)")
	rootFlagSet.BoolVar(&cfg.tui, "tui", false, "run the provisioning dialogue in a terminal UI")
	rootFlagSet.StringVar(&cfg.theme, "theme", "", "path to theme toml file")
	rootFlagSet.DurationVar(&cfg.triggerWindow, "trigger-window", provision.DefaultTriggerWindow, "how long to wait for the provisioning key at boot")
	rootFlagSet.DurationVar(&cfg.connectTimeout, "connect-timeout", link.DefaultConnectTimeout, "budget for a single connection attempt")
	rootFlagSet.DurationVar(&cfg.pollInterval, "poll-interval", link.DefaultPollInterval, "link status polling interval while connecting")
	rootFlagSet.DurationVar(&cfg.promptTimeout, "prompt-timeout", 0, "give up on an unanswered prompt after this long (0 waits forever)")
	rootFlagSet.DurationVar(&cfg.superviseInterval, "supervise-interval", 5*time.Second, "how often to check the link once running")
	rootFlagSet.BoolVar(&cfg.bssidFallback, "bssid-fallback", false, "connect by SSID when the saved BSSID is not in range")
	rootFlagSet.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	rootFlagSet.StringVar(&cfg.logFile, "log-file", "", "write logs to this file instead of stderr")

	var a *app

	provisionCmd := &ffcli.Command{
		Name:      "provision",
		ShortHelp: "Select and save a new network now",
		Exec: func(ctx context.Context, args []string) error {
			res, err := runProvision(ctx, a, a.provisionOptions(true))
			if err != nil {
				return err
			}
			return res.Err
		},
	}

	scanFlagSet := flag.NewFlagSet("scan", flag.ExitOnError)
	scanJSON := scanFlagSet.Bool("json", false, "output in JSON format")
	scanSort := scanFlagSet.Bool("sort", false, "order by signal strength")
	scanCmd := &ffcli.Command{
		Name:      "scan",
		ShortHelp: "List access points in range",
		FlagSet:   scanFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			return runScan(ctx, a.stdout, a.env, *scanJSON, *scanSort)
		},
	}

	statusCmd := &ffcli.Command{
		Name:      "status",
		ShortHelp: "Show link state and the saved network",
		Exec: func(ctx context.Context, args []string) error {
			return runStatus(ctx, a.stdout, a.env, a.supervisor)
		},
	}

	showFlagSet := flag.NewFlagSet("show", flag.ExitOnError)
	showQR := showFlagSet.Bool("qr", false, "print a QR code for the saved network")
	showCmd := &ffcli.Command{
		Name:      "show",
		ShortHelp: "Show the saved network",
		FlagSet:   showFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			return runShow(a.stdout, a.env.Credentials, *showQR)
		},
	}

	connectCmd := &ffcli.Command{
		Name:      "connect",
		ShortHelp: "Reconnect with the saved network if the link is down",
		Exec: func(ctx context.Context, args []string) error {
			return runConnect(ctx, a.stdout, a.supervisor)
		},
	}

	runCmd := &ffcli.Command{
		Name:      "run",
		ShortHelp: "Offer provisioning at boot, then keep the link up (default)",
		Exec: func(ctx context.Context, args []string) error {
			return runRun(ctx, a, a.provisionOptions(false))
		},
	}

	root := &ffcli.Command{
		ShortUsage:  "wifiprov [flags] <subcommand> [args...]",
		FlagSet:     rootFlagSet,
		Subcommands: []*ffcli.Command{runCmd, provisionCmd, scanCmd, statusCmd, showCmd, connectCmd},
		Options: []ff.Option{
			ff.WithEnvVarPrefix("WIFIPROV"),
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(parseTOMLConfig),
			ff.WithAllowMissingConfigFile(true),
		},
		Exec: func(ctx context.Context, args []string) error {
			return runRun(ctx, a, a.provisionOptions(false))
		},
	}

	if err := root.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("error parsing flags: %w", err)
	}

	if *version {
		fmt.Println(Version)
		return nil
	}

	logger, closeLog, err := setupLogging(cfg.logLevel, cfg.logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := loadTheme(cfg.theme); err != nil {
		return fmt.Errorf("error loading theme: %w", err)
	}

	radio, err := newRadio(cfg.radio, cfg.iface, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize radio: %w", err)
	}

	kv, closeStore, err := openStore(cfg.storeDriver, cfg.storePath)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	defer closeStore()

	a = newApp(cfg, radio, credentials.New(kv, logger), os.Stdin, os.Stdout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = root.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
