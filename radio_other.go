//go:build !linux

package main

import (
	"fmt"
	"log/slog"

	"github.com/shazow/wifiprov/wifi"
	"github.com/shazow/wifiprov/wifi/mock"
)

func newRadio(kind, iface string, logger *slog.Logger) (wifi.Radio, error) {
	if kind == "mock" {
		return mock.New()
	}
	return nil, fmt.Errorf("radio %q is only available on linux: %w", kind, wifi.ErrNotSupported)
}
