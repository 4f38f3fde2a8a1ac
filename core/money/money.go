// Package money implements fixed-point currency arithmetic for the fee ledger.
// All amounts are integer minor units (cents); decimal strings only appear at
// the serialization boundary.
package money

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Money is an amount in minor units (e.g. cents). Arithmetic never touches
// floating point.
type Money int64

func FromMinor(v int64) Money { return Money(v) }

// FromMajorString parses a decimal amount string ("50", "50.5", "50.00") into
// minor units. At most two fraction digits are accepted.
func FromMajorString(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty amount")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	parts := strings.SplitN(s, ".", 2)
	major, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing amount %q", s)
	}

	var minor int64
	if len(parts) == 2 {
		frac := parts[1]
		if len(frac) > 2 {
			return 0, errors.Errorf("parsing amount %q: more than 2 fraction digits", s)
		}
		for len(frac) < 2 {
			frac += "0"
		}
		if minor, err = strconv.ParseInt(frac, 10, 64); err != nil {
			return 0, errors.Wrapf(err, "parsing amount %q", s)
		}
	}

	v := major*100 + minor
	if neg {
		v = -v
	}
	return Money(v), nil
}

func (m Money) Minor() int64 { return int64(m) }

func (m Money) Add(o Money) Money { return m + o }
func (m Money) Sub(o Money) Money { return m - o }

func (m Money) IsZero() bool { return m == 0 }
func (m Money) IsNeg() bool  { return m < 0 }
func (m Money) IsPos() bool  { return m > 0 }

// Percent returns bps basis points of m (100 bps = 1%), truncated toward zero.
func (m Money) Percent(bps int64) Money {
	return Money(int64(m) * bps / 10000)
}

// String renders the amount as a decimal major-unit string, e.g. "50.00".
func (m Money) String() string {
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON serializes as a decimal string; external APIs present decimal
// amounts, internal representation stays integral.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// tolerate bare JSON numbers from older clients
		var f json.Number
		if nerr := json.Unmarshal(b, &f); nerr != nil {
			return err
		}
		s = f.String()
	}
	v, err := FromMajorString(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func Max(a, b Money) Money {
	if a > b {
		return a
	}
	return b
}

func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}
