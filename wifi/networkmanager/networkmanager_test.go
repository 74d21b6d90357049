//go:build linux

package networkmanager

import (
	"context"
	"errors"
	"net"
	"testing"

	gonetworkmanager "github.com/Wifx/gonetworkmanager/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shazow/wifiprov/wifi"
)

type mockNM struct {
	gonetworkmanager.NetworkManager
	getDevicesFunc   func() ([]gonetworkmanager.Device, error)
	wirelessDisabled bool

	activated   []map[string]map[string]interface{}
	activatedAP gonetworkmanager.AccessPoint
}

func (m *mockNM) GetDevices() ([]gonetworkmanager.Device, error) {
	if m.getDevicesFunc != nil {
		return m.getDevicesFunc()
	}
	return nil, nil
}

func (m *mockNM) GetPropertyWirelessEnabled() (bool, error) {
	return !m.wirelessDisabled, nil
}

func (m *mockNM) AddAndActivateConnection(c map[string]map[string]interface{}, d gonetworkmanager.Device) (gonetworkmanager.ActiveConnection, error) {
	m.activated = append(m.activated, c)
	return nil, nil
}

func (m *mockNM) AddAndActivateWirelessConnection(c map[string]map[string]interface{}, d gonetworkmanager.Device, ap gonetworkmanager.AccessPoint) (gonetworkmanager.ActiveConnection, error) {
	m.activated = append(m.activated, c)
	m.activatedAP = ap
	return nil, nil
}

type mockDeviceWireless struct {
	gonetworkmanager.DeviceWireless
	aps     []gonetworkmanager.AccessPoint
	state   gonetworkmanager.NmDeviceState
	scanErr error
	scans   int
}

func (d *mockDeviceWireless) RequestScan() error {
	d.scans++
	return d.scanErr
}

func (d *mockDeviceWireless) GetAccessPoints() ([]gonetworkmanager.AccessPoint, error) {
	return d.aps, nil
}

func (d *mockDeviceWireless) GetPropertyInterface() (string, error) {
	return "wlan0", nil
}

func (d *mockDeviceWireless) GetPropertyState() (gonetworkmanager.NmDeviceState, error) {
	return d.state, nil
}

type mockAP struct {
	gonetworkmanager.AccessPoint
	ssid, hw                  string
	strength                  uint8
	flags, wpaFlags, rsnFlags uint32
}

func (a *mockAP) GetPropertySSID() (string, error)      { return a.ssid, nil }
func (a *mockAP) GetPropertyHWAddress() (string, error) { return a.hw, nil }
func (a *mockAP) GetPropertyStrength() (uint8, error)   { return a.strength, nil }
func (a *mockAP) GetPropertyFlags() (uint32, error)     { return a.flags, nil }
func (a *mockAP) GetPropertyWPAFlags() (uint32, error)  { return a.wpaFlags, nil }
func (a *mockAP) GetPropertyRSNFlags() (uint32, error)  { return a.rsnFlags, nil }

type mockSettings struct {
	gonetworkmanager.Settings
	conns []gonetworkmanager.Connection
}

func (s *mockSettings) ListConnections() ([]gonetworkmanager.Connection, error) {
	return s.conns, nil
}

type mockConnection struct {
	gonetworkmanager.Connection
	id      string
	deleted bool
}

func (c *mockConnection) GetSettings() (gonetworkmanager.ConnectionSettings, error) {
	return gonetworkmanager.ConnectionSettings{"connection": {"id": c.id}}, nil
}

func (c *mockConnection) Delete() error {
	c.deleted = true
	return nil
}

func newTestRadio(dev *mockDeviceWireless) (*Radio, *mockNM, *mockSettings) {
	nm := &mockNM{
		getDevicesFunc: func() ([]gonetworkmanager.Device, error) {
			return []gonetworkmanager.Device{dev}, nil
		},
	}
	settings := &mockSettings{}
	return &Radio{NM: nm, Settings: settings}, nm, settings
}

func TestGetWirelessDeviceCaching(t *testing.T) {
	callCount := 0
	mockDev := &mockDeviceWireless{}
	nm := &mockNM{
		getDevicesFunc: func() ([]gonetworkmanager.Device, error) {
			callCount++
			return []gonetworkmanager.Device{mockDev}, nil
		},
	}
	r := &Radio{NM: nm}

	dev, err := r.getWirelessDevice()
	require.NoError(t, err)
	assert.Equal(t, mockDev, dev)

	dev, err = r.getWirelessDevice()
	require.NoError(t, err)
	assert.Equal(t, mockDev, dev)
	assert.Equal(t, 1, callCount)
}

func TestGetWirelessDeviceMissing(t *testing.T) {
	r := &Radio{NM: &mockNM{}}
	_, err := r.getWirelessDevice()
	assert.ErrorIs(t, err, wifi.ErrNotFound)
}

func TestScan(t *testing.T) {
	dev := &mockDeviceWireless{aps: []gonetworkmanager.AccessPoint{
		&mockAP{ssid: "HomeNet", hw: "AA:BB:CC:DD:EE:FF", strength: 120, rsnFlags: 0x100},
		&mockAP{ssid: "", hw: "02:00:00:00:00:09", strength: 80},
		&mockAP{ssid: "Legacy", hw: "02:00:00:00:00:01", strength: 40, flags: uint32(gonetworkmanager.Nm80211APFlagsPrivacy)},
		&mockAP{ssid: "Cafe", hw: "02:00:00:00:00:02", strength: 20},
		&mockAP{ssid: "OldWPA", hw: "02:00:00:00:00:03", strength: 60, wpaFlags: 0x8},
	}}
	r, _, _ := newTestRadio(dev)

	results, err := r.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dev.scans)
	require.Len(t, results, 4, "hidden networks are skipped")

	assert.Equal(t, wifi.ScanResult{
		SSID:           "HomeNet",
		BSSID:          net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF},
		RSSI:           -40,
		EncryptionCode: wifi.CodeCCMP,
	}, results[0])
	assert.Equal(t, wifi.CodeWEP, results[1].EncryptionCode)
	assert.Equal(t, wifi.CodeNone, results[2].EncryptionCode)
	assert.Equal(t, -90, results[2].RSSI)
	assert.Equal(t, wifi.CodeTKIP, results[3].EncryptionCode)
}

func TestScanErrors(t *testing.T) {
	dev := &mockDeviceWireless{}
	r, nm, _ := newTestRadio(dev)
	nm.wirelessDisabled = true
	_, err := r.Scan(context.Background())
	assert.ErrorIs(t, err, wifi.ErrWirelessDisabled)

	nm.wirelessDisabled = false
	dev.scanErr = errors.New("scan in progress")
	_, err = r.Scan(context.Background())
	assert.ErrorContains(t, err, "scan in progress")
}

func TestConnectPinsBSSID(t *testing.T) {
	home := &mockAP{ssid: "HomeNet", hw: "AA:BB:CC:DD:EE:FF"}
	other := &mockAP{ssid: "HomeNet", hw: "AA:BB:CC:DD:EE:00"}
	dev := &mockDeviceWireless{aps: []gonetworkmanager.AccessPoint{other, home}}
	r, nm, settings := newTestRadio(dev)
	stale := &mockConnection{id: ConnectionID}
	unrelated := &mockConnection{id: "office"}
	settings.conns = []gonetworkmanager.Connection{stale, unrelated}

	bssid := net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	require.NoError(t, r.Connect(context.Background(), "HomeNet", bssid, "secret"))

	assert.True(t, stale.deleted)
	assert.False(t, unrelated.deleted)
	require.Len(t, nm.activated, 1)
	assert.Equal(t, home, nm.activatedAP)

	c := nm.activated[0]
	assert.Equal(t, ConnectionID, c["connection"]["id"])
	assert.Equal(t, "wlan0", c["connection"]["interface-name"])
	assert.Equal(t, []byte("HomeNet"), c["802-11-wireless"]["ssid"])
	assert.Equal(t, []byte(bssid), c["802-11-wireless"]["bssid"])
	assert.Equal(t, "secret", c["802-11-wireless-security"]["psk"])
}

func TestConnectOpenNetworkOutOfRange(t *testing.T) {
	dev := &mockDeviceWireless{}
	r, nm, _ := newTestRadio(dev)

	require.NoError(t, r.Connect(context.Background(), "Cafe", nil, ""))
	require.Len(t, nm.activated, 1)
	assert.Nil(t, nm.activatedAP)
	_, secured := nm.activated[0]["802-11-wireless-security"]
	assert.False(t, secured)
	_, pinned := nm.activated[0]["802-11-wireless"]["bssid"]
	assert.False(t, pinned)
}

func TestConnected(t *testing.T) {
	dev := &mockDeviceWireless{state: gonetworkmanager.NmDeviceStateDisconnected}
	r, _, _ := newTestRadio(dev)

	up, err := r.Connected(context.Background())
	require.NoError(t, err)
	assert.False(t, up)

	dev.state = gonetworkmanager.NmDeviceStateActivated
	up, err = r.Connected(context.Background())
	require.NoError(t, err)
	assert.True(t, up)
}
