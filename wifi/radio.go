package wifi

import (
	"bytes"
	"context"
	"fmt"
	"net"
)

// BSSIDLen is the length of a hardware address as stored and compared.
const BSSIDLen = 6

// ScanResult is a single access point as reported by the radio, before
// classification.
type ScanResult struct {
	SSID           string
	BSSID          net.HardwareAddr
	RSSI           int // dBm
	EncryptionCode int // one of the Code* constants, or anything else for unknown
}

// AccessPoint represents a single discovered access point.
type AccessPoint struct {
	SSID       string
	BSSID      net.HardwareAddr
	SignalDBm  int
	Encryption Encryption
}

// String formats the access point the way it is listed to an operator.
func (ap AccessPoint) String() string {
	return fmt.Sprintf("%s (%d dBm) %s", ap.SSID, ap.SignalDBm, ap.Encryption)
}

// Credentials is the saved network profile.
type Credentials struct {
	SSID          string
	Password      string
	BSSID         net.HardwareAddr // nil when not pinned
	ServerAddress string
}

// HasBSSID reports whether the credentials pin a specific access point.
func (c Credentials) HasBSSID() bool {
	return len(c.BSSID) == BSSIDLen
}

// SameBSSID compares two hardware addresses over all six bytes.
func SameBSSID(a, b net.HardwareAddr) bool {
	return len(a) == BSSIDLen && len(b) == BSSIDLen && bytes.Equal(a, b)
}

// Radio is the wireless capability owned by the platform.
type Radio interface {
	// Scan triggers a fresh scan and returns what the radio saw, in discovery order.
	Scan(ctx context.Context) ([]ScanResult, error)
	// Connect starts joining a network. It does not wait for the link to come up.
	// bssid may be nil.
	Connect(ctx context.Context, ssid string, bssid net.HardwareAddr, password string) error
	// Connected reports whether the link is currently up.
	Connected(ctx context.Context) (bool, error)
}
