package link

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/shazow/wifiprov/wifi"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
)

// State is the result of a single connect attempt.
type State int

const (
	Disconnected State = iota
	Connected
	TimedOut
	BSSIDNotFound
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case TimedOut:
		return "timed out"
	case BSSIDNotFound:
		return "bssid not found"
	case Failed:
		return "failed"
	default:
		return "invalid state"
	}
}

// Outcome describes how a connect attempt ended.
type Outcome struct {
	State   State
	Elapsed time.Duration
	// SSID is the network name the radio was asked to join.
	SSID string
	// Err is set for Failed.
	Err error
}

// ConnectorConfig tunes the connect wait.
type ConnectorConfig struct {
	Timeout      time.Duration
	PollInterval time.Duration
	// FallbackToSSID joins by SSID alone when a pinned BSSID is not in range.
	// Off by default: a stale BSSID then leaves the link down.
	FallbackToSSID bool
}

// Connector joins a network and waits, bounded, for the link to come up.
type Connector struct {
	env *Env
	cfg ConnectorConfig
}

// NewConnector fills zero durations in cfg with the defaults.
func NewConnector(env *Env, cfg ConnectorConfig) *Connector {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConnectTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Connector{env: env, cfg: cfg}
}

// resolve finds the access point currently advertising bssid.
func (c *Connector) resolve(ctx context.Context, bssid net.HardwareAddr) (wifi.ScanResult, bool, error) {
	results, err := c.env.Radio.Scan(ctx)
	if err != nil {
		return wifi.ScanResult{}, false, err
	}
	for _, r := range results {
		if wifi.SameBSSID(r.BSSID, bssid) {
			return r, true, nil
		}
	}
	return wifi.ScanResult{}, false, nil
}

// Connect joins the network described by creds. When a BSSID is pinned, the
// radio is re-scanned and the access point with that exact address is joined
// under the SSID it advertises now, which tolerates a renamed network.
//
// A timeout is an Outcome, never an error.
func (c *Connector) Connect(ctx context.Context, creds wifi.Credentials) Outcome {
	log := c.env.Logger.With("ssid", creds.SSID)
	ssid := creds.SSID
	var bssid net.HardwareAddr

	if creds.HasBSSID() {
		c.env.printf("Connecting to WiFi network (BSSID): %s\n", creds.BSSID)
		ap, found, err := c.resolve(ctx, creds.BSSID)
		if err != nil {
			log.Error("scan before connect failed", "err", err)
			c.env.println("Failed to connect to WiFi")
			return Outcome{State: Failed, SSID: ssid, Err: fmt.Errorf("scan: %w", err)}
		}
		switch {
		case found:
			ssid = ap.SSID
			bssid = creds.BSSID
		case c.cfg.FallbackToSSID:
			log.Warn("saved bssid not in range, joining by ssid", "bssid", creds.BSSID.String())
			c.env.printf("Access point %s not found, connecting by SSID: %s\n", creds.BSSID, ssid)
		default:
			log.Warn("saved bssid not in range", "bssid", creds.BSSID.String())
			c.env.printf("Access point %s not found\n", creds.BSSID)
			return Outcome{State: BSSIDNotFound, SSID: ssid}
		}
	} else {
		c.env.printf("Connecting to WiFi network (SSID): %s\n", ssid)
	}

	if err := c.env.Radio.Connect(ctx, ssid, bssid, creds.Password); err != nil {
		log.Error("connect failed", "err", err)
		c.env.println("Failed to connect to WiFi")
		return Outcome{State: Failed, SSID: ssid, Err: err}
	}

	return c.wait(ctx, ssid)
}

// wait polls link status until it is up or the budget is spent. The last
// sleep is shortened so that the final check lands exactly on the budget.
func (c *Connector) wait(ctx context.Context, ssid string) Outcome {
	start := c.env.Clock.Now()
	for {
		up, err := c.env.Radio.Connected(ctx)
		if err != nil {
			c.env.Logger.Debug("link status query failed", "err", err)
		}
		elapsed := c.env.Clock.Now().Sub(start)

		if up {
			c.env.println("\nConnected to WiFi")
			c.env.Logger.Info("connected", "ssid", ssid, "elapsed", elapsed)
			return Outcome{State: Connected, SSID: ssid, Elapsed: elapsed}
		}
		if elapsed >= c.cfg.Timeout {
			c.env.println("\nFailed to connect to WiFi")
			c.env.Logger.Warn("connect timed out", "ssid", ssid, "elapsed", elapsed)
			return Outcome{State: TimedOut, SSID: ssid, Elapsed: elapsed}
		}

		delay := c.cfg.PollInterval
		if remaining := c.cfg.Timeout - elapsed; remaining < delay {
			delay = remaining
		}
		if err := ctx.Err(); err != nil {
			return Outcome{State: Failed, SSID: ssid, Elapsed: elapsed, Err: err}
		}
		select {
		case <-ctx.Done():
			return Outcome{State: Failed, SSID: ssid, Elapsed: elapsed, Err: ctx.Err()}
		case <-c.env.Clock.After(delay):
		}
		c.env.printf(".")
	}
}
