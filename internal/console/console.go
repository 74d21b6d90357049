// Package console hosts a provisioning session in an interactive terminal.
package console

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/shazow/wifiprov/internal/log"
	"github.com/shazow/wifiprov/link"
	"github.com/shazow/wifiprov/provision"
	"github.com/shazow/wifiprov/wifi"
)

// DefaultInterval is how often the session is polled.
const DefaultInterval = 50 * time.Millisecond

const (
	transcriptLines = 14
	logLines        = 3
)

// Transcript collects the session's status output. It is safe for
// concurrent use.
type Transcript struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	pass io.Writer
}

func (t *Transcript) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pass != nil {
		return t.pass.Write(p)
	}
	return t.buf.Write(p)
}

// Release copies what was collected to w and sends later writes straight
// to it.
func (t *Transcript) Release(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if w == nil {
		w = io.Discard
	}
	t.pass = w
	_, err := w.Write(t.buf.Bytes())
	return err
}

func (t *Transcript) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

// tail returns the last n lines.
func (t *Transcript) tail(n int) []string {
	lines := strings.Split(strings.TrimRight(t.String(), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

type tickMsg time.Time

type stageMsg provision.Stage

type stepMsg struct {
	consumed int
	drop     bool
	stage    provision.Stage
	networks []wifi.AccessPoint
	done     bool
	result   provision.Result
}

// Model is the bubbletea model driving one provisioning session.
type Model struct {
	ctx      context.Context
	cancel   context.CancelFunc
	session  *provision.Session
	out      *Transcript
	stages   chan provision.Stage
	interval time.Duration

	spinner spinner.Model
	queue   []byte
	echo    []byte
	busy    bool

	stage    provision.Stage
	networks []wifi.AccessPoint
	logs     []string
	done     bool
	result   provision.Result
	width    int
}

// New builds a session on env and a model hosting it. env.Out is replaced
// with the model's transcript; see Transcript.Release.
func New(ctx context.Context, env *link.Env, connector *link.Connector, cfg provision.Config) *Model {
	ctx, cancel := context.WithCancel(ctx)
	out := &Transcript{}
	env.Out = out

	stages := make(chan provision.Stage, 16)
	cfg.OnStage = func(s provision.Stage) {
		select {
		case stages <- s:
		default:
		}
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(CurrentTheme.Primary)

	session := provision.New(env, connector, cfg)
	m := &Model{
		ctx:      ctx,
		cancel:   cancel,
		session:  session,
		out:      out,
		stages:   stages,
		interval: DefaultInterval,
		spinner:  s,
		stage:    session.Stage(),
	}
	// Records from before the console started, such as radio setup warnings.
	for _, r := range log.Logs() {
		m.addLog(r)
	}
	return m
}

func (m *Model) addLog(r slog.Record) {
	m.logs = append(m.logs, fmt.Sprintf("%s %s", r.Level, r.Message))
	if len(m.logs) > logLines {
		m.logs = m.logs[len(m.logs)-logLines:]
	}
}

// Transcript returns everything the session has printed.
func (m *Model) Transcript() string { return m.out.String() }

// Result returns the session result once it is done. A console closed early
// reports provision.ErrAborted.
func (m *Model) Result() provision.Result {
	if !m.done {
		return provision.Result{Err: provision.ErrAborted}
	}
	return m.result
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitForStage(ch <-chan provision.Stage) tea.Cmd {
	return func() tea.Msg { return stageMsg(<-ch) }
}

// Init starts polling.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.step(), tick(m.interval), waitForStage(m.stages))
}

// step runs one Poll off the update loop, unless one is already running.
func (m *Model) step() tea.Cmd {
	if m.busy || m.done {
		return nil
	}
	n := len(m.queue)
	if n > provision.MaxChunk {
		n = provision.MaxChunk
	}
	chunk := append([]byte(nil), m.queue[:n]...)
	m.busy = true

	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		consumed := session.Poll(ctx, chunk)
		return stepMsg{
			consumed: consumed,
			drop:     session.DropPending(),
			stage:    session.Stage(),
			networks: session.Networks(),
			done:     session.Done(),
			result:   session.Result(),
		}
	}
}

func (m *Model) key(msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyEnter:
		m.queue = append(m.queue, '\r')
		m.echo = m.echo[:0]
	case tea.KeySpace:
		m.queue = append(m.queue, ' ')
		m.echo = append(m.echo, ' ')
	case tea.KeyRunes:
		s := string(msg.Runes)
		m.queue = append(m.queue, s...)
		m.echo = append(m.echo, s...)
	}
}

// Update handles all incoming messages and updates the model accordingly
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
			return m, tea.Quit
		}
		m.key(msg)
		return m, nil
	case tickMsg:
		if m.done {
			return m, nil
		}
		return m, tea.Batch(m.step(), tick(m.interval))
	case stageMsg:
		if provision.Stage(msg) != m.stage {
			m.echo = m.echo[:0]
		}
		m.stage = provision.Stage(msg)
		return m, waitForStage(m.stages)
	case stepMsg:
		m.busy = false
		m.queue = m.queue[msg.consumed:]
		if msg.drop {
			m.queue = nil
		}
		m.stage = msg.stage
		m.networks = msg.networks
		if msg.done {
			m.done = true
			m.result = msg.result
			m.cancel()
			return m, tea.Quit
		}
		return m, nil
	case log.LogMsg:
		m.addLog(slog.Record(msg))
		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m *Model) status() string {
	switch m.stage {
	case provision.Scanning:
		return "Scanning for networks..."
	case provision.Persisting:
		return "Saving credentials..."
	case provision.Connecting:
		return "Connecting..."
	}
	return ""
}

func (m *Model) renderNetworks() string {
	var s strings.Builder
	dark := lipgloss.HasDarkBackground()
	subtle := lipgloss.NewStyle().Foreground(CurrentTheme.Subtle)
	normal := lipgloss.NewStyle().Foreground(CurrentTheme.Normal)
	for i, ap := range m.networks {
		signal := lipgloss.NewStyle().Foreground(CurrentTheme.SignalColor(ap.SignalDBm, dark))
		fmt.Fprintf(&s, "%s %s %s %s\n",
			subtle.Render(fmt.Sprintf("%2d:", i+1)),
			normal.Render(ap.SSID),
			signal.Render(fmt.Sprintf("(%d dBm)", ap.SignalDBm)),
			subtle.Render(ap.Encryption.String()),
		)
	}
	return s.String()
}

// View renders the UI based on the current model state
func (m *Model) View() string {
	var s strings.Builder
	primary := lipgloss.NewStyle().Foreground(CurrentTheme.Primary)

	s.WriteString(primary.Bold(true).Render("wifiprov"))
	s.WriteString("\n\n")
	for _, line := range m.out.tail(transcriptLines) {
		s.WriteString(line)
		s.WriteString("\n")
	}

	if m.stage == provision.AwaitingSelection && len(m.networks) > 0 {
		s.WriteString("\n")
		s.WriteString(m.renderNetworks())
	}

	if m.stage.Prompting() {
		echo := string(m.echo)
		if m.stage == provision.AwaitingPassword {
			echo = strings.Repeat("*", len(m.echo))
		}
		s.WriteString("\n")
		s.WriteString(primary.Render("> "))
		s.WriteString(echo)
		s.WriteString("\n")
	}

	if status := m.status(); status != "" {
		fmt.Fprintf(&s, "\n%s %s\n", m.spinner.View(), primary.Render(status))
	}

	if len(m.logs) > 0 {
		subtle := lipgloss.NewStyle().Foreground(CurrentTheme.Subtle)
		s.WriteString("\n")
		for _, l := range m.logs {
			s.WriteString(subtle.Render(l))
			s.WriteString("\n")
		}
	}
	return s.String()
}

// Run hosts a provisioning session on the terminal until it is done or the
// operator quits. Once the terminal is released the transcript is copied to
// w, which also receives env's later output.
func Run(ctx context.Context, env *link.Env, connector *link.Connector, cfg provision.Config, w io.Writer) (provision.Result, error) {
	m := New(ctx, env, connector, cfg)
	defer m.out.Release(w)

	p := tea.NewProgram(m, tea.WithContext(ctx))

	ch := make(chan tea.Msg, 16)
	log.SetOutput(ch)
	defer log.SetOutput(nil)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case msg := <-ch:
				p.Send(msg)
			case <-stop:
				return
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return provision.Result{}, fmt.Errorf("console: %w", err)
	}
	return m.Result(), nil
}
