package wifi

import "sort"

// SortAccessPoints sorts access points in place for display.
// The sorting order is:
// 1. Signal strength, strongest first.
// 2. Secured networks before open ones at equal strength.
// 3. Fallback to SSID alphabetically.
//
// Selection by index always uses discovery order, so only sort a copy.
func SortAccessPoints(aps []AccessPoint) {
	sort.SliceStable(aps, func(i, j int) bool {
		a := aps[i]
		b := aps[j]

		if a.SignalDBm != b.SignalDBm {
			return a.SignalDBm > b.SignalDBm
		}

		if a.Encryption.IsSecure() != b.Encryption.IsSecure() {
			return a.Encryption.IsSecure()
		}

		return a.SSID < b.SSID
	})
}
