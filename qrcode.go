package main

import (
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/shazow/wifiprov/wifi"
)

// EscapeWifiString handles the special character escaping for SSID and Password.
func EscapeWifiString(s string) string {
	// A replacer is more efficient than calling strings.Replace multiple times.
	r := strings.NewReplacer(
		`\`, `\\`,
		`;`, `\;`,
		`,`, `\,`,
		`:`, `\:`,
		`"`, `\"`,
	)
	return r.Replace(s)
}

// wifiQRPayload builds the WIFI: string phones understand. Saved
// credentials carry no encryption type, so a password implies WPA.
func wifiQRPayload(creds wifi.Credentials) string {
	var b strings.Builder

	b.WriteString("WIFI:S:")
	b.WriteString(EscapeWifiString(creds.SSID))
	b.WriteString(";")

	if creds.Password == "" {
		b.WriteString("T:nopass;")
	} else {
		b.WriteString("T:WPA;P:")
		b.WriteString(EscapeWifiString(creds.Password))
		b.WriteString(";")
	}

	b.WriteString(";")
	return b.String()
}

// GenerateWifiQRCode returns the terminal rendering of a QR code joining creds.
func GenerateWifiQRCode(creds wifi.Credentials) (string, error) {
	q, err := qrcode.New(wifiQRPayload(creds), qrcode.Medium)
	if err != nil {
		return "", err
	}
	return q.ToSmallString(false), nil
}
