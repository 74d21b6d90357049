package mock

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/shazow/wifiprov/wifi"
)

var DefaultActionSleep = 500 * time.Millisecond

// ConnectCall records a single Connect invocation.
type ConnectCall struct {
	SSID     string
	BSSID    net.HardwareAddr
	Password string
}

// MockRadio is a mock implementation of the wifi.Radio interface for testing.
type MockRadio struct {
	AccessPoints []wifi.ScanResult
	// Passwords lists the secret for each secured SSID. Connect to an SSID
	// missing here, or with the wrong password, never brings the link up.
	Passwords map[string]string
	LinkUp    bool

	ScanError      error
	ConnectError   error
	ConnectedError error

	ScanCount    int
	ConnectCalls []ConnectCall

	// ActionSleep is a delay before every action, to better emulate a real-world radio for the frontend. Set to 0 during testing.
	ActionSleep time.Duration
}

func mustMAC(s string) net.HardwareAddr {
	mac, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return mac
}

// New creates a new MockRadio with a list of fun wifi networks.
func New() (wifi.Radio, error) {
	return &MockRadio{
		AccessPoints: []wifi.ScanResult{
			{SSID: "TacoBoutAGoodSignal", BSSID: mustMAC("02:00:00:00:00:01"), RSSI: -38, EncryptionCode: wifi.CodeCCMP},
			{SSID: "Password is password", BSSID: mustMAC("02:00:00:00:00:02"), RSSI: -52, EncryptionCode: wifi.CodeCCMP},
			{SSID: "Unencrypted_Honeypot", BSSID: mustMAC("02:00:00:00:00:03"), RSSI: -61, EncryptionCode: wifi.CodeNone},
			{SSID: "NeverGonnaGiveYouIP", BSSID: mustMAC("02:00:00:00:00:04"), RSSI: -70, EncryptionCode: wifi.CodeWEP},
			{SSID: "Multi-AP Network", BSSID: mustMAC("00:11:22:33:44:55"), RSSI: -48, EncryptionCode: wifi.CodeTKIP},
			{SSID: "Multi-AP Network", BSSID: mustMAC("AA:BB:CC:DD:EE:FF"), RSSI: -67, EncryptionCode: wifi.CodeTKIP},
			{SSID: "Police Surveillance 2", BSSID: mustMAC("02:00:00:00:00:05"), RSSI: -82, EncryptionCode: wifi.CodeAuto},
		},
		Passwords: map[string]string{
			"TacoBoutAGoodSignal":  "tacos",
			"Password is password": "password",
			"NeverGonnaGiveYouIP":  "rickroll",
			"Multi-AP Network":     "multi",
		},
		ActionSleep: DefaultActionSleep,
	}, nil
}

func (m *MockRadio) sleep(ctx context.Context) error {
	if m.ActionSleep <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.ActionSleep):
		return nil
	}
}

func (m *MockRadio) Scan(ctx context.Context) ([]wifi.ScanResult, error) {
	if err := m.sleep(ctx); err != nil {
		return nil, err
	}
	m.ScanCount++

	if m.ScanError != nil {
		return nil, m.ScanError
	}
	results := make([]wifi.ScanResult, len(m.AccessPoints))
	copy(results, m.AccessPoints)
	return results, nil
}

func (m *MockRadio) Connect(ctx context.Context, ssid string, bssid net.HardwareAddr, password string) error {
	if err := m.sleep(ctx); err != nil {
		return err
	}
	m.ConnectCalls = append(m.ConnectCalls, ConnectCall{SSID: ssid, BSSID: bssid, Password: password})

	if m.ConnectError != nil {
		return m.ConnectError
	}
	m.LinkUp = false

	var found *wifi.ScanResult
	for i, ap := range m.AccessPoints {
		if ap.SSID != ssid {
			continue
		}
		if bssid != nil && !wifi.SameBSSID(ap.BSSID, bssid) {
			continue
		}
		found = &m.AccessPoints[i]
		break
	}
	if found == nil {
		return fmt.Errorf("cannot join unknown network %s: %w", ssid, wifi.ErrNotFound)
	}

	if wifi.ClassifyEncryption(found.EncryptionCode) == wifi.EncryptionOpen {
		m.LinkUp = true
		return nil
	}
	if secret, ok := m.Passwords[ssid]; ok && secret == password {
		m.LinkUp = true
	}
	return nil
}

func (m *MockRadio) Connected(ctx context.Context) (bool, error) {
	if m.ConnectedError != nil {
		return false, m.ConnectedError
	}
	return m.LinkUp, nil
}
