// Package credentials reads and writes the saved network profile.
//
// The profile is spread over four keys. A fifth key, the commit marker, holds
// a digest of the other four and is written last (or in the same transaction
// when the backing store supports batches), so a record left half-written by
// a failed save is detected on load rather than mixed with an older one.
package credentials

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/shazow/wifiprov/store"
	"github.com/shazow/wifiprov/wifi"
)

// Store keys.
const (
	KeySSID          = "network-ssid"
	KeyPassword      = "network-password"
	KeyBSSID         = "network-bssid"
	KeyServerAddress = "server-ip"
	KeyCommit        = "network-commit"
)

// ErrIncomplete means the saved fields do not form one committed record.
var ErrIncomplete = errors.New("saved credentials are incomplete")

// noBSSID is written when the profile is not pinned to an access point.
// Any value that is not exactly six bytes reads back as "no BSSID".
var noBSSID = []byte{0}

// Store is the credential access layer over a store.Store.
type Store struct {
	kv     store.Store
	logger *slog.Logger
}

// New wraps kv. A nil logger uses slog.Default().
func New(kv store.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, logger: logger}
}

func encodeText(s string) []byte {
	b := make([]byte, 0, len(s)+1)
	b = append(b, s...)
	return append(b, 0)
}

func decodeText(b []byte) string {
	return string(bytes.TrimSuffix(b, []byte{0}))
}

func encodeBSSID(mac net.HardwareAddr) []byte {
	if len(mac) != wifi.BSSIDLen {
		return noBSSID
	}
	return append([]byte{}, mac...)
}

func digest(entries []store.Entry) []byte {
	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s:%d:", e.Key, len(e.Value))
		h.Write(e.Value)
	}
	return []byte(hex.EncodeToString(h.Sum(nil)))
}

func entries(c wifi.Credentials) []store.Entry {
	return []store.Entry{
		{Key: KeySSID, Value: encodeText(c.SSID)},
		{Key: KeyPassword, Value: encodeText(c.Password)},
		{Key: KeyBSSID, Value: encodeBSSID(c.BSSID)},
		{Key: KeyServerAddress, Value: encodeText(c.ServerAddress)},
	}
}

// Save persists c as one record. With a store.Batcher the write is atomic.
// Otherwise the fields are written in order and the first failure aborts the
// rest; the commit marker is only written once every field succeeded.
func (s *Store) Save(c wifi.Credentials) error {
	fields := entries(c)
	record := append(fields, store.Entry{Key: KeyCommit, Value: digest(fields)})

	if b, ok := s.kv.(store.Batcher); ok {
		if err := b.PutBatch(record); err != nil {
			s.logger.Error("failed to save credentials", "err", err)
			return fmt.Errorf("save credentials: %w", err)
		}
		s.logger.Info("credentials saved", "ssid", c.SSID, "bssid", c.BSSID.String(), "server", c.ServerAddress)
		return nil
	}

	for _, e := range record {
		if err := s.kv.Put(e.Key, e.Value); err != nil {
			s.logger.Error("failed to save credential field", "key", e.Key, "err", err)
			return fmt.Errorf("save %s: %w", e.Key, err)
		}
	}
	s.logger.Info("credentials saved", "ssid", c.SSID, "bssid", c.BSSID.String(), "server", c.ServerAddress)
	return nil
}

// Load reads the saved record. It returns wifi.ErrNoCredentials when nothing
// usable is saved: a missing SSID or password, a failed read of either, or a
// record that fails the commit check (also wrapping ErrIncomplete). A BSSID
// that failed to read or is not six bytes long comes back as nil.
func (s *Store) Load() (wifi.Credentials, error) {
	var c wifi.Credentials

	raw := make(map[string][]byte, 4)
	for _, key := range []string{KeySSID, KeyPassword} {
		v, err := s.kv.Get(key)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				s.logger.Error("failed to read credential field", "key", key, "err", err)
			}
			return c, fmt.Errorf("read %s: %w", key, wifi.ErrNoCredentials)
		}
		raw[key] = v
	}

	// An unreadable BSSID or server address degrades instead of failing: the
	// record cannot be verified, so the commit check is skipped for it.
	degraded := false
	for _, key := range []string{KeyBSSID, KeyServerAddress} {
		v, err := s.kv.Get(key)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				s.logger.Warn("failed to read credential field", "key", key, "err", err)
				degraded = true
			}
			continue
		}
		raw[key] = v
	}

	if !degraded {
		commit, err := s.kv.Get(KeyCommit)
		if err != nil {
			return c, fmt.Errorf("%w: %w", ErrIncomplete, wifi.ErrNoCredentials)
		}
		var fields []store.Entry
		for _, key := range []string{KeySSID, KeyPassword, KeyBSSID, KeyServerAddress} {
			fields = append(fields, store.Entry{Key: key, Value: raw[key]})
		}
		if !bytes.Equal(commit, digest(fields)) {
			s.logger.Warn("saved credentials do not match their commit marker")
			return c, fmt.Errorf("%w: %w", ErrIncomplete, wifi.ErrNoCredentials)
		}
	}

	c.SSID = decodeText(raw[KeySSID])
	c.Password = decodeText(raw[KeyPassword])
	c.ServerAddress = decodeText(raw[KeyServerAddress])
	if b := raw[KeyBSSID]; len(b) == wifi.BSSIDLen {
		c.BSSID = net.HardwareAddr(append([]byte{}, b...))
	}
	return c, nil
}

// Has reports whether any network profile has been saved, committed or not.
func (s *Store) Has() (bool, error) {
	return s.kv.Has(KeySSID)
}

// ServerAddress returns the saved server address, or "" if none is saved.
func (s *Store) ServerAddress() string {
	v, err := s.kv.Get(KeyServerAddress)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("failed to read server address", "err", err)
		}
		return ""
	}
	return decodeText(v)
}
