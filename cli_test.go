package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shazow/wifiprov/credentials"
	"github.com/shazow/wifiprov/link"
	"github.com/shazow/wifiprov/link/linktest"
	"github.com/shazow/wifiprov/store/memory"
	"github.com/shazow/wifiprov/wifi"
	"github.com/shazow/wifiprov/wifi/mock"
)

func newTestApp(t *testing.T, stdin io.Reader) (*app, *mock.MockRadio, *bytes.Buffer) {
	t.Helper()
	r, err := mock.New()
	require.NoError(t, err)
	radio := r.(*mock.MockRadio)
	radio.ActionSleep = 0

	var out bytes.Buffer
	creds := credentials.New(memory.NewAtomic(), nil)
	a := newApp(config{}, radio, creds, stdin, &out, nil)
	a.env.Clock = linktest.NewClock(time.Unix(0, 0))
	return a, radio, &out
}

func TestRunScan(t *testing.T) {
	a, radio, out := newTestApp(t, nil)

	require.NoError(t, runScan(context.Background(), out, a.env, false, false))
	assert.Equal(t, 1, radio.ScanCount)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "7 networks found:", lines[0])
	assert.Equal(t, "1: TacoBoutAGoodSignal (-38 dBm) WPA2", lines[1])
	assert.Equal(t, "3: Unencrypted_Honeypot (-61 dBm) Open", lines[3])
	assert.Equal(t, "7: Police Surveillance 2 (-82 dBm) Auto", lines[7])
}

func TestRunScanJSONSorted(t *testing.T) {
	a, _, out := newTestApp(t, nil)

	require.NoError(t, runScan(context.Background(), out, a.env, true, true))

	var aps []accessPointJSON
	require.NoError(t, json.Unmarshal(out.Bytes(), &aps))
	require.Len(t, aps, 7)
	assert.Equal(t, accessPointJSON{
		SSID:       "TacoBoutAGoodSignal",
		BSSID:      "02:00:00:00:00:01",
		SignalDBm:  -38,
		Encryption: "WPA2",
	}, aps[0])
	assert.Equal(t, "Multi-AP Network", aps[1].SSID)
	assert.Equal(t, -82, aps[6].SignalDBm)
}

func TestRunScanFailure(t *testing.T) {
	a, radio, out := newTestApp(t, nil)
	radio.ScanError = wifi.ErrWirelessDisabled

	err := runScan(context.Background(), out, a.env, false, false)
	assert.ErrorIs(t, err, wifi.ErrWirelessDisabled)
}

func TestRunShow(t *testing.T) {
	a, _, out := newTestApp(t, nil)

	err := runShow(out, a.env.Credentials, false)
	assert.ErrorIs(t, err, wifi.ErrNoCredentials)
	assert.Contains(t, out.String(), "Saved network: none")

	require.NoError(t, a.env.Credentials.Save(wifi.Credentials{
		SSID:          "HomeNet",
		Password:      "hunter2",
		ServerAddress: "192.168.1.10",
	}))

	out.Reset()
	require.NoError(t, runShow(out, a.env.Credentials, false))
	assert.Equal(t, "Saved network: HomeNet\nBSSID: none\nServer IP: 192.168.1.10\nPassphrase: hunter2\n", out.String())

	out.Reset()
	require.NoError(t, runShow(out, a.env.Credentials, true))
	assert.Greater(t, strings.Count(out.String(), "\n"), 10, "expected a rendered QR code")
}

func TestRunStatus(t *testing.T) {
	a, radio, out := newTestApp(t, nil)
	radio.LinkUp = true

	require.NoError(t, runStatus(context.Background(), out, a.env, a.supervisor))
	assert.Contains(t, out.String(), "Link: connected\n")
	assert.Contains(t, out.String(), "Saved network: none\n")
}

func TestRunStatusIncompleteRecord(t *testing.T) {
	r, err := mock.New()
	require.NoError(t, err)
	kv := memory.New()
	require.NoError(t, kv.Put(credentials.KeySSID, []byte("HomeNet\x00")))
	require.NoError(t, kv.Put(credentials.KeyServerAddress, []byte("10.0.0.9\x00")))

	var out bytes.Buffer
	a := newApp(config{}, r, credentials.New(kv, nil), nil, &out, nil)

	require.NoError(t, runStatus(context.Background(), &out, a.env, a.supervisor))
	assert.Equal(t, "Link: disconnected\nSaved network: incomplete\nServer IP: 10.0.0.9\n", out.String())
}

func TestRunConnect(t *testing.T) {
	a, radio, out := newTestApp(t, nil)
	require.NoError(t, a.env.Credentials.Save(wifi.Credentials{SSID: "TacoBoutAGoodSignal", Password: "tacos"}))

	require.NoError(t, runConnect(context.Background(), out, a.supervisor))
	require.Len(t, radio.ConnectCalls, 1)
	assert.Equal(t, "TacoBoutAGoodSignal", radio.ConnectCalls[0].SSID)
	assert.Contains(t, out.String(), "Result: connected")

	// Already up: no further connect.
	out.Reset()
	require.NoError(t, runConnect(context.Background(), out, a.supervisor))
	assert.Len(t, radio.ConnectCalls, 1)
	assert.Equal(t, "Result: connected\n", out.String())
}

func TestRunConnectWithoutCredentials(t *testing.T) {
	a, radio, out := newTestApp(t, nil)

	require.NoError(t, runConnect(context.Background(), out, a.supervisor))
	assert.Empty(t, radio.ConnectCalls)
	assert.Contains(t, out.String(), "No saved credentials")
}

// operator answers each prompt as it is printed, the way a person at the
// console would.
type operator struct {
	bytes.Buffer
	answers map[string]string
	w       io.Writer
}

func (o *operator) Write(p []byte) (int, error) {
	o.Buffer.Write(p)
	for prompt, answer := range o.answers {
		if strings.Contains(string(p), prompt) {
			if _, err := io.WriteString(o.w, answer); err != nil {
				return 0, err
			}
		}
	}
	return len(p), nil
}

func TestRunProvision(t *testing.T) {
	a, radio, _ := newTestApp(t, nil)

	pr, pw := io.Pipe()
	defer pw.Close()
	op := &operator{
		w: pw,
		answers: map[string]string{
			"Enter the number of the network": "1\r",
			"Enter the password":              "tacos\r",
			"Enter the server IP":             "10.0.0.2\r",
		},
	}
	a.stdin, a.stdout = pr, op

	res, err := runProvision(context.Background(), a, a.provisionOptions(true))
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.True(t, res.Saved)
	assert.Equal(t, link.Connected, res.Outcome.State)
	assert.Contains(t, op.String(), "Selected network: TacoBoutAGoodSignal")
	assert.Contains(t, op.String(), "Connected to WiFi")

	require.Len(t, radio.ConnectCalls, 1)
	assert.Equal(t, "tacos", radio.ConnectCalls[0].Password)

	saved, err := a.env.Credentials.Load()
	require.NoError(t, err)
	assert.Equal(t, "TacoBoutAGoodSignal", saved.SSID)
	assert.Equal(t, "10.0.0.2", saved.ServerAddress)
}

func TestRunStopsWhenConsoleInterrupted(t *testing.T) {
	a, radio, _ := newTestApp(t, strings.NewReader("\x03"))
	a.env.Clock = clock.WallClock
	a.cfg.superviseInterval = time.Millisecond
	require.NoError(t, a.env.Credentials.Save(wifi.Credentials{SSID: "TacoBoutAGoodSignal", Password: "tacos"}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, runRun(ctx, a, a.provisionOptions(false)))

	assert.NoError(t, ctx.Err(), "should return without waiting for the deadline")
	assert.Zero(t, radio.ScanCount)
	assert.Empty(t, radio.ConnectCalls, "supervisor should not have started")
}

func TestWifiQRPayload(t *testing.T) {
	tests := []struct {
		name  string
		creds wifi.Credentials
		want  string
	}{
		{"wpa", wifi.Credentials{SSID: "HomeNet", Password: "hunter2"}, "WIFI:S:HomeNet;T:WPA;P:hunter2;;"},
		{"open", wifi.Credentials{SSID: "Cafe"}, "WIFI:S:Cafe;T:nopass;;"},
		{"escaped", wifi.Credentials{SSID: `a;b`, Password: `c:d,"e"\`}, `WIFI:S:a\;b;T:WPA;P:c\:d\,\"e\"\\;;`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, wifiQRPayload(tc.creds))
		})
	}
}
