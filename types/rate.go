package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Rate is an annual interest rate expressed in basis points, so 18% is
// Rate(1800). Integer basis points keep accrual arithmetic exact; a rate
// with more than two decimal places of percent cannot be represented and
// is rejected at parse time.
type Rate int64

// MaxRate is 100%, the highest annual rate a lien may carry.
const MaxRate Rate = 10000

// BasisPoints creates a Rate from raw basis points.
func BasisPoints(bp int64) Rate { return Rate(bp) }

// Percent creates a Rate from a whole-number percentage (18 -> 18%).
func Percent(pct int64) Rate { return Rate(pct * 100) }

// ParsePercent parses a decimal percentage string ("18", "12.5", "0.25")
// into a Rate. At most two fractional digits are accepted.
func ParsePercent(s string) (Rate, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, fmt.Errorf("rate: empty percentage")
	}

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("rate: %q has more than two fractional digits", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("rate: parse %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("rate: parse %q: %w", s, err)
	}

	bp := w*100 + f
	if neg {
		bp = -bp
	}
	return Rate(bp), nil
}

// BasisPoints returns the raw basis-point value.
func (r Rate) BasisPoints() int64 { return int64(r) }

// IsValid reports whether the rate lies within the permitted 0–100% range.
func (r Rate) IsValid() bool { return r >= 0 && r <= MaxRate }

// String formats the rate as a percentage, trimming a zero fraction:
// Rate(1800) -> "18%", Rate(1250) -> "12.5%".
func (r Rate) String() string {
	bp := int64(r)
	neg := bp < 0
	if neg {
		bp = -bp
	}

	whole := bp / 100
	frac := bp % 100

	var out string
	switch {
	case frac == 0:
		out = strconv.FormatInt(whole, 10)
	case frac%10 == 0:
		out = fmt.Sprintf("%d.%d", whole, frac/10)
	default:
		out = fmt.Sprintf("%d.%02d", whole, frac)
	}
	if neg {
		out = "-" + out
	}
	return out + "%"
}

// MarshalText implements encoding.TextMarshaler.
func (r Rate) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rate) UnmarshalText(data []byte) error {
	parsed, err := ParsePercent(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
