//go:build linux

// Package networkmanager drives the radio through NetworkManager over D-Bus.
package networkmanager

import (
	"context"
	"fmt"
	"net"

	gonetworkmanager "github.com/Wifx/gonetworkmanager/v3"
	"github.com/google/uuid"

	"github.com/shazow/wifiprov/wifi"
)

// ConnectionID names the single NetworkManager profile this radio manages.
// It is replaced on every Connect.
const ConnectionID = "wifiprov"

// Radio implements wifi.Radio using NetworkManager.
type Radio struct {
	NM       gonetworkmanager.NetworkManager
	Settings gonetworkmanager.Settings

	device gonetworkmanager.DeviceWireless
}

var _ wifi.Radio = (*Radio)(nil)

// New connects to NetworkManager on the system bus.
func New() (wifi.Radio, error) {
	nm, err := gonetworkmanager.NewNetworkManager()
	if err != nil {
		return nil, fmt.Errorf("failed to create network manager client: %w", wifi.ErrNotAvailable)
	}

	settings, err := gonetworkmanager.NewSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", wifi.ErrOperationFailed)
	}

	return &Radio{NM: nm, Settings: settings}, nil
}

// getWirelessDevice returns the first wireless device, looked up once.
func (r *Radio) getWirelessDevice() (gonetworkmanager.DeviceWireless, error) {
	if r.device != nil {
		return r.device, nil
	}
	devices, err := r.NM.GetDevices()
	if err != nil {
		return nil, err
	}
	for _, device := range devices {
		if dev, ok := device.(gonetworkmanager.DeviceWireless); ok {
			r.device = dev
			return dev, nil
		}
	}
	return nil, fmt.Errorf("no wireless device found: %w", wifi.ErrNotFound)
}

// encryptionCode maps access point flags onto the codes wifi.ClassifyEncryption
// understands.
func encryptionCode(flags, wpaFlags, rsnFlags uint32) int {
	switch {
	case rsnFlags > 0:
		return wifi.CodeCCMP
	case wpaFlags > 0:
		return wifi.CodeTKIP
	case flags&uint32(gonetworkmanager.Nm80211APFlagsPrivacy) != 0:
		return wifi.CodeWEP
	default:
		return wifi.CodeNone
	}
}

// strengthToDBm converts NetworkManager's 0-100 quality into dBm.
func strengthToDBm(strength uint8) int {
	return int(strength)/2 - 100
}

func (r *Radio) Scan(ctx context.Context) ([]wifi.ScanResult, error) {
	enabled, err := r.NM.GetPropertyWirelessEnabled()
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, wifi.ErrWirelessDisabled
	}

	dev, err := r.getWirelessDevice()
	if err != nil {
		return nil, err
	}
	if err := dev.RequestScan(); err != nil {
		return nil, fmt.Errorf("request scan: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	aps, err := dev.GetAccessPoints()
	if err != nil {
		return nil, err
	}

	results := make([]wifi.ScanResult, 0, len(aps))
	for _, ap := range aps {
		ssid, err := ap.GetPropertySSID()
		if err != nil || ssid == "" {
			continue
		}
		hw, err := ap.GetPropertyHWAddress()
		if err != nil {
			continue
		}
		bssid, err := net.ParseMAC(hw)
		if err != nil {
			continue
		}
		strength, _ := ap.GetPropertyStrength()
		flags, _ := ap.GetPropertyFlags()
		wpaFlags, _ := ap.GetPropertyWPAFlags()
		rsnFlags, _ := ap.GetPropertyRSNFlags()

		results = append(results, wifi.ScanResult{
			SSID:           ssid,
			BSSID:          bssid,
			RSSI:           strengthToDBm(strength),
			EncryptionCode: encryptionCode(flags, wpaFlags, rsnFlags),
		})
	}
	return results, nil
}

// removeProfile deletes earlier profiles created by this radio.
func (r *Radio) removeProfile() error {
	conns, err := r.Settings.ListConnections()
	if err != nil {
		return err
	}
	for _, c := range conns {
		s, err := c.GetSettings()
		if err != nil {
			continue
		}
		if id, _ := s["connection"]["id"].(string); id == ConnectionID {
			if err := c.Delete(); err != nil {
				return err
			}
		}
	}
	return nil
}

// connectionSettings builds the profile for ssid. A non-nil bssid locks the
// profile to that access point.
func connectionSettings(iface, ssid string, bssid net.HardwareAddr, password string) map[string]map[string]interface{} {
	connection := map[string]map[string]interface{}{
		"connection": {
			"id":             ConnectionID,
			"uuid":           uuid.New().String(),
			"type":           "802-11-wireless",
			"interface-name": iface,
			"autoconnect":    true,
		},
		"802-11-wireless": {
			"mode": "infrastructure",
			"ssid": []byte(ssid),
		},
		"ipv4": {"method": "auto"},
		"ipv6": {"method": "auto"},
	}
	if bssid != nil {
		connection["802-11-wireless"]["bssid"] = []byte(bssid)
	}
	if password != "" {
		connection["802-11-wireless"]["security"] = "802-11-wireless-security"
		connection["802-11-wireless-security"] = map[string]interface{}{
			"key-mgmt": "wpa-psk",
			"psk":      password,
		}
	}
	return connection
}

// Connect replaces the managed profile and asks NetworkManager to activate
// it. It does not wait for the link.
func (r *Radio) Connect(ctx context.Context, ssid string, bssid net.HardwareAddr, password string) error {
	dev, err := r.getWirelessDevice()
	if err != nil {
		return err
	}
	iface, _ := dev.GetPropertyInterface()

	if err := r.removeProfile(); err != nil {
		return fmt.Errorf("remove old profile: %w", err)
	}

	aps, err := dev.GetAccessPoints()
	if err != nil {
		return err
	}
	var target gonetworkmanager.AccessPoint
	for _, ap := range aps {
		apSSID, err := ap.GetPropertySSID()
		if err != nil || apSSID != ssid {
			continue
		}
		if bssid != nil {
			hw, err := ap.GetPropertyHWAddress()
			if err != nil {
				continue
			}
			mac, err := net.ParseMAC(hw)
			if err != nil || !wifi.SameBSSID(mac, bssid) {
				continue
			}
		}
		target = ap
		break
	}

	settings := connectionSettings(iface, ssid, bssid, password)
	if target == nil {
		_, err = r.NM.AddAndActivateConnection(settings, dev)
	} else {
		_, err = r.NM.AddAndActivateWirelessConnection(settings, dev, target)
	}
	if err != nil {
		return fmt.Errorf("activate %s: %w", ssid, err)
	}
	return nil
}

func (r *Radio) Connected(ctx context.Context) (bool, error) {
	dev, err := r.getWirelessDevice()
	if err != nil {
		return false, err
	}
	state, err := dev.GetPropertyState()
	if err != nil {
		return false, err
	}
	return state == gonetworkmanager.NmDeviceStateActivated, nil
}
