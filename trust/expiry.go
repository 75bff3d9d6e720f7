package trust

import "time"

// ExpiryStatus is the three-way action label the reference implementation's
// check_gpg_keys CLI prints per key.
type ExpiryStatus string

const (
	StatusOK      ExpiryStatus = "OK"
	StatusWarn    ExpiryStatus = "WARN"
	StatusExpired ExpiryStatus = "EXPIRED"
)

// ExpiryReport is one line of the key-expiry report: a key's fingerprint,
// how many days remain before it expires, and the resulting label.
type ExpiryReport struct {
	Fingerprint  string
	Identity     string
	DaysToExpiry int // whole days, truncated toward zero: zero or negative once expired; unused (zero) if the key never expires
	NeverExpires bool
	Status       ExpiryStatus
}

// CheckExpiry classifies every key in ks against now, warning when at
// most warnBeforeDays whole days remain.
func CheckExpiry(ks *KeyStore, now time.Time, warnBeforeDays int) ([]ExpiryReport, error) {
	infos, err := ks.Keys()
	if err != nil {
		return nil, err
	}

	reports := make([]ExpiryReport, 0, len(infos))
	for _, info := range infos {
		r := ExpiryReport{Fingerprint: info.Fingerprint, Identity: info.Identity}
		if info.ExpiresAt.IsZero() {
			r.NeverExpires = true
			r.Status = StatusOK
			reports = append(reports, r)
			continue
		}
		remaining := info.ExpiresAt.Sub(now)
		r.DaysToExpiry = int(remaining.Hours() / 24)
		switch {
		case remaining <= 0:
			r.Status = StatusExpired
		case r.DaysToExpiry <= warnBeforeDays:
			r.Status = StatusWarn
		default:
			r.Status = StatusOK
		}
		reports = append(reports, r)
	}
	return reports, nil
}
