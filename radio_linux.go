//go:build linux

package main

import (
	"fmt"
	"log/slog"

	"github.com/shazow/wifiprov/wifi"
	"github.com/shazow/wifiprov/wifi/mock"
	"github.com/shazow/wifiprov/wifi/networkmanager"
	"github.com/shazow/wifiprov/wifi/wpa"
)

func newRadio(kind, iface string, logger *slog.Logger) (wifi.Radio, error) {
	switch kind {
	case "mock":
		return mock.New()
	case "wpa":
		return wpa.New(iface)
	case "networkmanager", "":
		r, err := networkmanager.New()
		if err == nil {
			return r, nil
		}
		logger.Warn("failed to initialize networkmanager radio, falling back to wpa_supplicant", "err", err)
		// If NetworkManager is not running, talk to wpa_supplicant directly.
		return wpa.New(iface)
	}
	return nil, fmt.Errorf("unknown radio %q: %w", kind, wifi.ErrNotSupported)
}
