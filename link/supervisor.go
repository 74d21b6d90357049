package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shazow/wifiprov/wifi"
)

// Supervisor keeps the link up from saved credentials. It never prompts.
type Supervisor struct {
	env       *Env
	connector *Connector
}

// NewSupervisor returns a Supervisor that connects through connector.
func NewSupervisor(env *Env, connector *Connector) *Supervisor {
	return &Supervisor{env: env, connector: connector}
}

// IsConnected reports the current link state. A failed status query counts
// as disconnected.
func (s *Supervisor) IsConnected(ctx context.Context) bool {
	up, err := s.env.Radio.Connected(ctx)
	if err != nil {
		s.env.Logger.Debug("link status query failed", "err", err)
		return false
	}
	return up
}

// EnsureConnected is a no-op when the link is up. Otherwise it reconnects
// with the saved credentials. It is safe to call on every host loop tick.
func (s *Supervisor) EnsureConnected(ctx context.Context) (Outcome, error) {
	if s.IsConnected(ctx) {
		return Outcome{State: Connected}, nil
	}
	s.env.println("WiFi not connected. Attempting to connect...")
	return s.Reconnect(ctx)
}

// Reconnect joins the saved network regardless of the current link state.
// It returns an error wrapping wifi.ErrNoCredentials, and makes no connect
// call, when nothing usable is saved.
func (s *Supervisor) Reconnect(ctx context.Context) (Outcome, error) {
	creds, err := s.env.Credentials.Load()
	if err != nil {
		s.env.println("No saved credentials")
		s.env.Logger.Warn("cannot reconnect", "err", err)
		return Outcome{State: Disconnected}, err
	}
	return s.connector.Connect(ctx, creds), nil
}

// Run calls EnsureConnected every interval until ctx is done.
func (s *Supervisor) Run(ctx context.Context, interval time.Duration) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := s.EnsureConnected(ctx)
		switch {
		case errors.Is(err, wifi.ErrNoCredentials):
			// Provisioning is only entered interactively; keep waiting.
		case err != nil:
			return fmt.Errorf("ensure connected: %w", err)
		case outcome.State != Connected:
			s.env.Logger.Info("link still down", "state", outcome.State, "ssid", outcome.SSID)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.env.Clock.After(interval):
		}
	}
}
