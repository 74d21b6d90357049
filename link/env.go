// Package link discovers access points and brings the radio link up from
// saved credentials.
package link

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"github.com/shazow/wifiprov/credentials"
	"github.com/shazow/wifiprov/wifi"
)

// Clock is the time source for every wait. clock.WallClock satisfies it.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

var _ Clock = clock.WallClock

// Env holds the collaborators shared by every component. It replaces any
// process-wide connection manager; construct one per radio.
type Env struct {
	Radio       wifi.Radio
	Credentials *credentials.Store
	Clock       Clock
	// Out receives human-readable progress lines. May be nil.
	Out    io.Writer
	Logger *slog.Logger
}

// NewEnv fills in defaults for the optional fields.
func NewEnv(radio wifi.Radio, creds *credentials.Store, out io.Writer, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	return &Env{
		Radio:       radio,
		Credentials: creds,
		Clock:       clock.WallClock,
		Out:         out,
		Logger:      logger,
	}
}

func (e *Env) printf(format string, a ...interface{}) {
	if e.Out == nil {
		return
	}
	fmt.Fprintf(e.Out, format, a...)
}

func (e *Env) println(s string) {
	e.printf("%s\n", s)
}
