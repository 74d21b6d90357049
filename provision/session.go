// Package provision implements the interactive setup dialogue: a short boot
// window in which the operator can pick a network from a fresh scan and
// enter its password and the reporting server address.
//
// A Session never blocks waiting for input. The host calls Poll on a fixed
// interval with whatever bytes have arrived since the last call; the session
// keeps its stage and any partially typed line between calls.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shazow/wifiprov/link"
	"github.com/shazow/wifiprov/wifi"
)

// MaxChunk is the most input a single Poll consumes.
const MaxChunk = 256

const (
	DefaultTriggerWindow = 10 * time.Second
	DefaultTriggerChar   = 'n'
	DefaultSkipChar      = 's'
)

// maxDigits bounds a typed network number; longer numbers are out of range.
const maxDigits = 9

// ErrAborted is reported when the session's context ends before it is done.
var ErrAborted = errors.New("provisioning aborted")

// Stage is a step of the dialogue.
type Stage int

const (
	AwaitingTrigger Stage = iota
	Scanning
	AwaitingSelection
	AwaitingPassword
	AwaitingServerAddress
	Persisting
	Connecting
	Done
)

var stageNames = [...]string{
	AwaitingTrigger:       "awaiting trigger",
	Scanning:              "scanning",
	AwaitingSelection:     "awaiting selection",
	AwaitingPassword:      "awaiting password",
	AwaitingServerAddress: "awaiting server address",
	Persisting:            "persisting",
	Connecting:            "connecting",
	Done:                  "done",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "invalid stage"
	}
	return stageNames[s]
}

// Prompting reports whether the stage waits for operator input.
func (s Stage) Prompting() bool {
	switch s {
	case AwaitingTrigger, AwaitingSelection, AwaitingPassword, AwaitingServerAddress:
		return true
	}
	return false
}

// Config tunes a Session. Zero values take the defaults.
type Config struct {
	// TriggerWindow is how long the boot prompt waits for TriggerChar.
	TriggerWindow time.Duration
	// PromptTimeout bounds each of the selection, password and server
	// prompts. Zero waits forever. An expired prompt skips provisioning.
	PromptTimeout time.Duration
	TriggerChar   byte
	SkipChar      byte
	// StartAtScanning begins as if the trigger had already been pressed.
	StartAtScanning bool
	// OnStage, if set, is called on every stage change from the goroutine
	// running Poll.
	OnStage func(Stage)
}

func (c *Config) setDefaults() {
	if c.TriggerWindow <= 0 {
		c.TriggerWindow = DefaultTriggerWindow
	}
	if c.TriggerChar == 0 {
		c.TriggerChar = DefaultTriggerChar
	}
	if c.SkipChar == 0 {
		c.SkipChar = DefaultSkipChar
	}
}

// Result is what a finished session did.
type Result struct {
	// Credentials holds what the operator entered. Zero when skipped.
	Credentials wifi.Credentials
	// Skipped is set when no new network was entered and the saved
	// credentials were used instead.
	Skipped bool
	// Saved is set when the entered credentials were persisted.
	Saved   bool
	Outcome link.Outcome
	// Err is the persist error, the reason saved credentials could not be
	// used, or ErrAborted.
	Err error
}

// Session is one run of the dialogue. It is not safe for concurrent use.
type Session struct {
	env        *link.Env
	scanner    *link.Scanner
	connector  *link.Connector
	supervisor *link.Supervisor
	cfg        Config
	logger     *slog.Logger

	started  bool
	stage    Stage
	deadline time.Time
	closed   bool

	networks []wifi.AccessPoint
	selected wifi.AccessPoint
	password string

	digits   []byte
	line     []byte
	skipLF   bool
	skipping bool
	// drop is set when an answer was accepted and anything typed after it
	// must be thrown away.
	drop bool

	result Result
}

// New returns a session that scans and connects through env.
func New(env *link.Env, connector *link.Connector, cfg Config) *Session {
	cfg.setDefaults()
	s := &Session{
		env:        env,
		scanner:    link.NewScanner(env),
		connector:  connector,
		supervisor: link.NewSupervisor(env, connector),
		cfg:        cfg,
		logger:     env.Logger.With("session", uuid.NewString()),
	}
	if cfg.StartAtScanning {
		s.stage = Scanning
	}
	return s
}

// Stage returns the current stage.
func (s *Session) Stage() Stage { return s.stage }

// Networks returns the access points offered for selection, in discovery order.
func (s *Session) Networks() []wifi.AccessPoint { return s.networks }

// Done reports whether the session has finished.
func (s *Session) Done() bool { return s.stage == Done }

// Result returns the outcome of a finished session.
func (s *Session) Result() Result { return s.result }

// DropPending reports whether the input the host is still holding should be
// discarded, and resets the report. The session discards the rest of a chunk
// once a selection or line is accepted; hosts that queue bytes beyond
// MaxChunk call this after every Poll and drop their queue when it is true.
func (s *Session) DropPending() bool {
	drop := s.drop
	s.drop = false
	return drop
}

// CloseInput tells the session no more input will arrive. A session still
// waiting for the operator then stops prompting and uses the saved
// credentials.
func (s *Session) CloseInput() { s.closed = true }

func (s *Session) printf(format string, a ...interface{}) {
	if s.env.Out != nil {
		fmt.Fprintf(s.env.Out, format, a...)
	}
}

func (s *Session) setStage(stage Stage) {
	s.logger.Debug("provisioning stage", "from", s.stage, "to", stage)
	s.stage = stage
	if s.cfg.OnStage != nil {
		s.cfg.OnStage(stage)
	}
	s.deadline = time.Time{}
	switch {
	case stage == AwaitingTrigger:
		s.deadline = s.env.Clock.Now().Add(s.cfg.TriggerWindow)
	case stage.Prompting() && s.cfg.PromptTimeout > 0:
		s.deadline = s.env.Clock.Now().Add(s.cfg.PromptTimeout)
	}
}

func (s *Session) expired() bool {
	return !s.deadline.IsZero() && !s.env.Clock.Now().Before(s.deadline)
}

func (s *Session) start() {
	s.started = true
	if s.stage == AwaitingTrigger {
		s.printf("Press '%c' within %d seconds to select a new network.\n", s.cfg.TriggerChar, int(s.cfg.TriggerWindow/time.Second))
	}
	s.setStage(s.stage)
}

// Poll advances the session with the bytes that arrived since the last call
// and returns how many of them it consumed. At most MaxChunk bytes are
// consumed; the host keeps the rest for the next call. Poll runs the scan
// and the connect wait to completion, so a call that reaches those stages
// blocks for as long as they take.
func (s *Session) Poll(ctx context.Context, input []byte) int {
	if len(input) > MaxChunk {
		input = input[:MaxChunk]
	}
	if s.stage == Done {
		return 0
	}
	if !s.started {
		s.start()
	}

	buf := input
	for s.stage != Done {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("provisioning aborted", "stage", s.stage, "err", err)
			s.result.Err = fmt.Errorf("%w: %w", ErrAborted, err)
			s.setStage(Done)
			break
		}

		var wait bool
		switch s.stage {
		case AwaitingTrigger:
			buf, wait = s.awaitTrigger(buf)
		case Scanning:
			s.scan(ctx)
		case AwaitingSelection:
			buf, wait = s.awaitSelection(buf)
		case AwaitingPassword:
			buf, wait = s.awaitLine(buf, func(v string) {
				s.password = v
				s.printf("Password entered: %s\n", strings.Repeat("*", len(v)))
				s.printf("Enter the server IP address: \n")
				s.setStage(AwaitingServerAddress)
			})
		case AwaitingServerAddress:
			buf, wait = s.awaitLine(buf, func(v string) {
				s.printf("Server IP entered: %s\n", v)
				s.result.Credentials = wifi.Credentials{
					SSID:          s.selected.SSID,
					Password:      s.password,
					BSSID:         s.selected.BSSID,
					ServerAddress: v,
				}
				s.setStage(Persisting)
			})
		case Persisting:
			s.persist()
		case Connecting:
			s.connect(ctx)
		}
		if wait {
			break
		}
	}
	return len(input) - len(buf)
}

func (s *Session) awaitTrigger(buf []byte) ([]byte, bool) {
	if s.expired() || (s.closed && len(buf) == 0) {
		s.printf("Timeout reached. Using saved credentials.\n")
		s.skipping = true
		s.setStage(Connecting)
		return buf, false
	}
	for i, c := range buf {
		if c == s.cfg.TriggerChar {
			s.printf("Scanning for networks...\n")
			s.setStage(Scanning)
			return buf[i+1:], false
		}
	}
	return nil, true
}

func (s *Session) scan(ctx context.Context) {
	aps, err := s.scanner.Scan(ctx)
	if err != nil {
		s.printf("Scan failed: %v\n", err)
	}
	s.networks = aps
	s.printf("Scan complete\n")
	link.PrintAccessPoints(s.env.Out, aps)
	s.printf("Enter the number of the network you want to connect to (or press '%c' to skip): \n", s.cfg.SkipChar)
	s.setStage(AwaitingSelection)
}

func (s *Session) skip(reason string) {
	if reason != "" {
		s.printf("%s\n", reason)
	}
	s.printf("Skipped network selection. Will attempt to use saved credentials if available.\n")
	s.logger.Info("network selection skipped")
	s.skipping = true
	s.digits = nil
	s.line = nil
	s.setStage(Connecting)
}

// promptGone skips when the current prompt can no longer be answered.
func (s *Session) promptGone(buf []byte) bool {
	switch {
	case s.expired():
		s.skip("No response.")
	case s.closed && len(buf) == 0:
		s.skip("Input closed.")
	default:
		return false
	}
	return true
}

// pick evaluates the pending number. Out of range numbers are ignored.
func (s *Session) pick() bool {
	digits := s.digits
	s.digits = nil
	if len(digits) == 0 || len(digits) > maxDigits {
		return false
	}
	n, err := strconv.Atoi(string(digits))
	if err != nil || n < 1 || n > len(s.networks) {
		s.logger.Debug("ignoring out of range selection", "input", string(digits))
		return false
	}
	s.selected = s.networks[n-1]
	s.printf("Selected network: %s\n", s.selected.SSID)
	s.logger.Info("network selected", "ssid", s.selected.SSID, "bssid", s.selected.BSSID.String())
	s.printf("Enter the password for the network: \n")
	s.setStage(AwaitingPassword)
	return true
}

func (s *Session) awaitSelection(buf []byte) ([]byte, bool) {
	for i, c := range buf {
		if c >= '0' && c <= '9' {
			s.digits = append(s.digits, c)
			continue
		}
		if s.pick() {
			// Whatever else was typed is discarded.
			s.skipLF = c == '\r' && i == len(buf)-1
			s.drop = true
			return nil, false
		}
		if c == s.cfg.SkipChar {
			s.skip("")
			return buf[i+1:], false
		}
	}
	if s.closed && s.pick() {
		s.drop = true
		return nil, false
	}
	if s.promptGone(nil) {
		return nil, false
	}
	return nil, true
}

// awaitLine collects one line terminated by CR or LF and hands it to done.
// Input following the terminator in the same chunk is discarded.
func (s *Session) awaitLine(buf []byte, done func(string)) ([]byte, bool) {
	if s.skipLF && len(buf) > 0 {
		if buf[0] == '\n' {
			buf = buf[1:]
		}
		s.skipLF = false
	}
	for i, c := range buf {
		if c == '\r' || c == '\n' {
			v := string(s.line)
			s.line = nil
			s.skipLF = c == '\r' && i == len(buf)-1
			s.drop = true
			done(v)
			return nil, false
		}
		s.line = append(s.line, c)
	}
	if s.promptGone(nil) {
		return nil, false
	}
	return nil, true
}

func (s *Session) persist() {
	creds := s.result.Credentials
	if err := s.env.Credentials.Save(creds); err != nil {
		s.printf("Failed to save network credentials: %v\n", err)
		s.result.Err = err
	} else {
		s.result.Saved = true
		s.printf("Network credentials saved. Attempting to connect...\n")
	}
	s.setStage(Connecting)
}

func (s *Session) connect(ctx context.Context) {
	if s.skipping {
		s.result.Skipped = true
		outcome, err := s.supervisor.Reconnect(ctx)
		s.result.Outcome = outcome
		if err != nil {
			s.result.Err = err
		}
	} else {
		// The entered credentials are used even if saving them failed.
		s.result.Outcome = s.connector.Connect(ctx, s.result.Credentials)
	}
	s.logger.Info("provisioning finished", "skipped", s.result.Skipped, "saved", s.result.Saved, "state", s.result.Outcome.State)
	s.setStage(Done)
}
