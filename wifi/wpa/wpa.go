//go:build linux

// Package wpa drives the radio through wpa_supplicant's D-Bus interface.
package wpa

import (
	"context"
	"net"
	"time"

	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"

	"github.com/shazow/wifiprov/wifi"
)

const (
	service       = "fi.w1.wpa_supplicant1"
	servicePath   = "/fi/w1/wpa_supplicant1"
	interfaceName = service + ".Interface"
	bssName       = service + ".BSS"
)

const (
	scanPoll    = 200 * time.Millisecond
	scanTimeout = 10 * time.Second
)

// Radio implements wifi.Radio using wpa_supplicant.
type Radio struct {
	iface  dbus.BusObject
	object func(dbus.ObjectPath) dbus.BusObject
}

var _ wifi.Radio = (*Radio)(nil)

// New attaches to the wpa_supplicant interface managing ifname.
func New(ifname string) (wifi.Radio, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, errors.Errorf("could not connect to system bus: %w", wifi.ErrNotAvailable)
	}
	object := func(p dbus.ObjectPath) dbus.BusObject {
		return conn.Object(service, p)
	}

	var path dbus.ObjectPath
	call := object(servicePath).Call(service+".GetInterface", 0, ifname)
	if err := call.Store(&path); err != nil {
		return nil, errors.Errorf("could not find interface %s: %v: %w", ifname, err, wifi.ErrNotFound)
	}

	return &Radio{iface: object(path), object: object}, nil
}

func (r *Radio) scanning() (bool, error) {
	v, err := r.iface.GetProperty(interfaceName + ".Scanning")
	if err != nil {
		return false, err
	}
	scanning, _ := v.Value().(bool)
	return scanning, nil
}

// waitScan blocks until wpa_supplicant reports the scan finished.
func (r *Radio) waitScan(ctx context.Context) error {
	timeout := time.NewTimer(scanTimeout)
	defer timeout.Stop()
	for {
		scanning, err := r.scanning()
		if err != nil {
			return errors.Errorf("could not get scan state: %w", err)
		}
		if !scanning {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return errors.Errorf("scan did not finish: %w", wifi.ErrOperationFailed)
		case <-time.After(scanPoll):
		}
	}
}

func keyMgmt(v dbus.Variant) []string {
	props, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return nil
	}
	mgmt, _ := props["KeyMgmt"].Value().([]string)
	return mgmt
}

// parseBSS converts the properties of a fi.w1.wpa_supplicant1.BSS object.
func parseBSS(props map[string]dbus.Variant) (wifi.ScanResult, error) {
	var res wifi.ScanResult

	ssid, ok := props["SSID"].Value().([]byte)
	if !ok {
		return res, errors.Errorf("mandatory property SSID was missing")
	}
	bssid, ok := props["BSSID"].Value().([]byte)
	if !ok || len(bssid) != wifi.BSSIDLen {
		return res, errors.Errorf("mandatory property BSSID was missing")
	}
	res.SSID = string(ssid)
	res.BSSID = net.HardwareAddr(bssid)

	if signal, ok := props["Signal"].Value().(int16); ok {
		res.RSSI = int(signal)
	}

	privacy, _ := props["Privacy"].Value().(bool)
	switch {
	case len(keyMgmt(props["RSN"])) > 0:
		res.EncryptionCode = wifi.CodeCCMP
	case len(keyMgmt(props["WPA"])) > 0:
		res.EncryptionCode = wifi.CodeTKIP
	case privacy:
		res.EncryptionCode = wifi.CodeWEP
	default:
		res.EncryptionCode = wifi.CodeNone
	}
	return res, nil
}

func (r *Radio) Scan(ctx context.Context) ([]wifi.ScanResult, error) {
	call := r.iface.CallWithContext(ctx, interfaceName+".Scan", 0, map[string]interface{}{
		"Type": "active",
	})
	if call.Err != nil {
		return nil, errors.Errorf("could not scan: %w", call.Err)
	}
	if err := r.waitScan(ctx); err != nil {
		return nil, err
	}

	v, err := r.iface.GetProperty(interfaceName + ".BSSs")
	if err != nil {
		return nil, errors.Errorf("could not get bsss: %w", err)
	}
	paths, ok := v.Value().([]dbus.ObjectPath)
	if !ok {
		return nil, errors.Errorf("could not convert bss list: %w", wifi.ErrOperationFailed)
	}

	results := make([]wifi.ScanResult, 0, len(paths))
	for _, p := range paths {
		call := r.object(p).CallWithContext(ctx, "org.freedesktop.DBus.Properties.GetAll", 0, bssName)
		if call.Err != nil {
			continue
		}
		var props map[string]dbus.Variant
		if err := call.Store(&props); err != nil {
			continue
		}
		res, err := parseBSS(props)
		if err != nil || res.SSID == "" {
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// Connect replaces every configured network with ssid and selects it. It
// does not wait for the association.
func (r *Radio) Connect(ctx context.Context, ssid string, bssid net.HardwareAddr, password string) error {
	if call := r.iface.CallWithContext(ctx, interfaceName+".RemoveAllNetworks", 0); call.Err != nil {
		return errors.Errorf("could not remove networks: %w", call.Err)
	}

	args := map[string]interface{}{"ssid": ssid}
	if password != "" {
		args["psk"] = password
	} else {
		args["key_mgmt"] = "NONE"
	}
	if bssid != nil {
		args["bssid"] = bssid.String()
	}

	var path dbus.ObjectPath
	if err := r.iface.CallWithContext(ctx, interfaceName+".AddNetwork", 0, args).Store(&path); err != nil {
		return errors.Errorf("could not add network %s: %w", ssid, err)
	}
	if call := r.iface.CallWithContext(ctx, interfaceName+".SelectNetwork", 0, path); call.Err != nil {
		return errors.Errorf("could not select network %s: %w", ssid, call.Err)
	}
	return nil
}

func (r *Radio) Connected(ctx context.Context) (bool, error) {
	v, err := r.iface.GetProperty(interfaceName + ".State")
	if err != nil {
		return false, errors.Errorf("could not get state: %w", err)
	}
	state, _ := v.Value().(string)
	return state == "completed", nil
}
