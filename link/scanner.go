package link

import (
	"context"
	"fmt"
	"io"

	"github.com/shazow/wifiprov/wifi"
)

// Scanner turns radio scan results into classified access points.
type Scanner struct {
	env *Env
}

// NewScanner returns a Scanner using env's radio.
func NewScanner(env *Env) *Scanner {
	return &Scanner{env: env}
}

// Scan triggers a fresh radio scan. Finding nothing is not an error: the
// result is an empty slice. Order is discovery order.
func (s *Scanner) Scan(ctx context.Context) ([]wifi.AccessPoint, error) {
	results, err := s.env.Radio.Scan(ctx)
	if err != nil {
		s.env.Logger.Error("scan failed", "err", err)
		return []wifi.AccessPoint{}, fmt.Errorf("scan: %w", err)
	}

	aps := make([]wifi.AccessPoint, 0, len(results))
	for _, r := range results {
		aps = append(aps, wifi.AccessPoint{
			SSID:       r.SSID,
			BSSID:      r.BSSID,
			SignalDBm:  r.RSSI,
			Encryption: wifi.ClassifyEncryption(r.EncryptionCode),
		})
	}
	s.env.Logger.Debug("scan complete", "count", len(aps))
	return aps, nil
}

// PrintAccessPoints writes the numbered list shown to an operator.
func PrintAccessPoints(w io.Writer, aps []wifi.AccessPoint) {
	if len(aps) == 0 {
		fmt.Fprintln(w, "No networks found")
		return
	}
	fmt.Fprintf(w, "%d networks found:\n", len(aps))
	for i, ap := range aps {
		fmt.Fprintf(w, "%d: %s\n", i+1, ap)
	}
}
