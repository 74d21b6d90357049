package console

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shazow/wifiprov/credentials"
	"github.com/shazow/wifiprov/internal/log"
	"github.com/shazow/wifiprov/link"
	"github.com/shazow/wifiprov/link/linktest"
	"github.com/shazow/wifiprov/provision"
	"github.com/shazow/wifiprov/store/memory"
	"github.com/shazow/wifiprov/wifi"
	"github.com/shazow/wifiprov/wifi/mock"
)

func newTestModel(t *testing.T) (*Model, *link.Env) {
	t.Helper()
	radio := &mock.MockRadio{
		AccessPoints: []wifi.ScanResult{
			{SSID: "HomeNet", BSSID: net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, RSSI: -40, EncryptionCode: wifi.CodeCCMP},
			{SSID: "CoffeeShop", BSSID: net.HardwareAddr{0x02, 0, 0, 0, 0, 1}, RSSI: -75, EncryptionCode: wifi.CodeNone},
		},
		Passwords: map[string]string{"HomeNet": "secret"},
	}
	env := link.NewEnv(radio, credentials.New(memory.New(), nil), nil, nil)
	env.Clock = linktest.NewClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	m := New(context.Background(), env, link.NewConnector(env, link.ConnectorConfig{}), provision.Config{})
	return m, env
}

// pump runs one session step synchronously.
func pump(t *testing.T, m *Model) tea.Cmd {
	t.Helper()
	cmd := m.step()
	require.NotNil(t, cmd, "a step should have been started")
	_, next := m.Update(cmd())
	return next
}

func typeKeys(m *Model, s string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func enter(m *Model) {
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

func TestModelProvisionsFromKeys(t *testing.T) {
	m, env := newTestModel(t)

	pump(t, m)
	assert.Equal(t, provision.AwaitingTrigger, m.stage)
	assert.Contains(t, m.View(), "Press 'n' within 10 seconds")

	typeKeys(m, "n")
	pump(t, m)
	assert.Equal(t, provision.AwaitingSelection, m.stage)
	view := m.View()
	assert.Contains(t, view, "HomeNet")
	assert.Contains(t, view, "(-75 dBm)")

	typeKeys(m, "1")
	enter(m)
	pump(t, m)
	assert.Equal(t, provision.AwaitingPassword, m.stage)

	typeKeys(m, "secret")
	assert.Contains(t, m.View(), "> ******")
	assert.NotContains(t, m.View(), "secret")
	enter(m)
	pump(t, m)

	typeKeys(m, "10.0.0.5")
	enter(m)
	cmd := pump(t, m)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	res := m.Result()
	require.NoError(t, res.Err)
	assert.True(t, res.Saved)
	assert.Equal(t, link.Connected, res.Outcome.State)

	saved, err := env.Credentials.Load()
	require.NoError(t, err)
	assert.Equal(t, "HomeNet", saved.SSID)
	assert.Equal(t, "10.0.0.5", saved.ServerAddress)
	assert.Contains(t, m.Transcript(), "Connected to WiFi")
}

func TestModelDropsKeysTypedPastAnswer(t *testing.T) {
	m, _ := newTestModel(t)
	pump(t, m)
	typeKeys(m, "n")
	pump(t, m)

	typeKeys(m, "1")
	enter(m)
	cmd := m.step()
	require.NotNil(t, cmd)
	// Typed while the selection was being handled.
	typeKeys(m, "leak")
	enter(m)
	m.Update(cmd())

	assert.Equal(t, provision.AwaitingPassword, m.stage)
	assert.Empty(t, m.queue)
}

func TestModelOneStepAtATime(t *testing.T) {
	m, _ := newTestModel(t)
	require.NotNil(t, m.step())
	assert.Nil(t, m.step())
}

func TestModelQuitAborts(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.ErrorIs(t, m.Result().Err, provision.ErrAborted)
}

func TestModelShowsLogs(t *testing.T) {
	m, _ := newTestModel(t)
	r := slog.NewRecord(time.Now(), slog.LevelWarn, "saved bssid not in range", 0)
	m.Update(log.LogMsg(r))
	assert.Contains(t, m.View(), "WARN saved bssid not in range")
}

func TestModelShowsEarlierLogs(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)
	log.Init(slog.NewTextHandler(io.Discard, nil))
	slog.Warn("failed to initialize networkmanager radio")

	m, _ := newTestModel(t)
	assert.Contains(t, m.View(), "WARN failed to initialize networkmanager radio")
}

func TestTranscriptRelease(t *testing.T) {
	var tr Transcript
	tr.Write([]byte("one\n"))

	var buf bytes.Buffer
	require.NoError(t, tr.Release(&buf))
	tr.Write([]byte("two\n"))
	assert.Equal(t, "one\ntwo\n", buf.String())
}
