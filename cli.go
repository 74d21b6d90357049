package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shazow/wifiprov/credentials"
	"github.com/shazow/wifiprov/internal/console"
	"github.com/shazow/wifiprov/link"
	"github.com/shazow/wifiprov/provision"
	"github.com/shazow/wifiprov/wifi"
)

type accessPointJSON struct {
	SSID       string `json:"ssid"`
	BSSID      string `json:"bssid"`
	SignalDBm  int    `json:"signal_dbm"`
	Encryption string `json:"encryption"`
}

func runScan(ctx context.Context, w io.Writer, env *link.Env, asJSON, sorted bool) error {
	aps, err := link.NewScanner(env).Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan networks: %w", err)
	}
	if sorted {
		wifi.SortAccessPoints(aps)
	}

	if asJSON {
		out := make([]accessPointJSON, 0, len(aps))
		for _, ap := range aps {
			out = append(out, accessPointJSON{
				SSID:       ap.SSID,
				BSSID:      ap.BSSID.String(),
				SignalDBm:  ap.SignalDBm,
				Encryption: ap.Encryption.String(),
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	link.PrintAccessPoints(w, aps)
	return nil
}

func printSaved(w io.Writer, creds *credentials.Store) (wifi.Credentials, bool) {
	saved, err := creds.Load()
	if err != nil {
		if has, _ := creds.Has(); has {
			fmt.Fprintln(w, "Saved network: incomplete")
		} else {
			fmt.Fprintln(w, "Saved network: none")
		}
		if addr := creds.ServerAddress(); addr != "" {
			fmt.Fprintf(w, "Server IP: %s\n", addr)
		}
		return saved, false
	}
	fmt.Fprintf(w, "Saved network: %s\n", saved.SSID)
	if saved.HasBSSID() {
		fmt.Fprintf(w, "BSSID: %s\n", saved.BSSID)
	} else {
		fmt.Fprintln(w, "BSSID: none")
	}
	fmt.Fprintf(w, "Server IP: %s\n", creds.ServerAddress())
	return saved, true
}

func runStatus(ctx context.Context, w io.Writer, env *link.Env, supervisor *link.Supervisor) error {
	if supervisor.IsConnected(ctx) {
		fmt.Fprintln(w, "Link: connected")
	} else {
		fmt.Fprintln(w, "Link: disconnected")
	}
	printSaved(w, env.Credentials)
	return nil
}

func runShow(w io.Writer, creds *credentials.Store, qr bool) error {
	saved, ok := printSaved(w, creds)
	if !ok {
		return fmt.Errorf("nothing to show: %w", wifi.ErrNoCredentials)
	}
	fmt.Fprintf(w, "Passphrase: %s\n", saved.Password)

	if qr {
		code, err := GenerateWifiQRCode(saved)
		if err != nil {
			return fmt.Errorf("failed to generate qr code: %w", err)
		}
		fmt.Fprint(w, code)
	}
	return nil
}

func runConnect(ctx context.Context, w io.Writer, supervisor *link.Supervisor) error {
	outcome, err := supervisor.EnsureConnected(ctx)
	if err != nil {
		// Reported by the supervisor; not a failure of the command.
		return nil
	}
	fmt.Fprintf(w, "Result: %s", outcome.State)
	if outcome.Elapsed > 0 {
		fmt.Fprintf(w, " after %s", outcome.Elapsed)
	}
	fmt.Fprintln(w)
	return nil
}

// provisionOptions selects how the dialogue is hosted.
type provisionOptions struct {
	session provision.Config
	tui     bool
	// poll is the stream host's polling interval.
	poll time.Duration
}

func runProvision(ctx context.Context, a *app, opts provisionOptions) (provision.Result, error) {
	if opts.tui {
		return console.Run(ctx, a.env, a.connector, opts.session, a.stdout)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c, err := openConsole(a.cfg.consolePath, a.stdin, a.stdout, cancel)
	if err != nil {
		return provision.Result{}, fmt.Errorf("failed to open console: %w", err)
	}
	defer c.restore()

	out := a.env.Out
	a.env.Out = c.out
	defer func() { a.env.Out = out }()

	s := provision.New(a.env, a.connector, opts.session)
	if err := provision.Run(ctx, s, c.in, opts.poll, a.env.Clock); err != nil {
		return provision.Result{}, err
	}
	return s.Result(), nil
}

// runRun is the boot sequence: the provisioning window, then keeping the
// link up until ctx ends.
func runRun(ctx context.Context, a *app, opts provisionOptions) error {
	res, err := runProvision(ctx, a, opts)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(res.Err, provision.ErrAborted):
		// The operator interrupted the console.
		return nil
	case err != nil:
		return err
	case res.Err != nil:
		a.logger.Info("provisioning finished without a link", "err", res.Err)
	}
	if ctx.Err() != nil {
		return nil
	}

	err = a.supervisor.Run(ctx, a.cfg.superviseInterval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
