package costsheet

import (
	"math"
	"strings"

	"github.com/spf13/cast"
)

// ToNumber reads a sheet value the way a person types it: "1,234.5",
// "(12)" for -12 and "24%" for 0.24. It reports false for blank or
// non-numeric text.
func ToNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	percent := strings.HasSuffix(s, "%")
	if percent {
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.ReplaceAll(s, ",", "")

	v, err := cast.ToFloat64E(s)
	if err != nil || s == "" || math.IsNaN(v) {
		return 0, false
	}
	if negative {
		v = -v
	}
	if percent {
		v /= 100
	}
	return v, true
}

func numberPtr(s string) *float64 {
	v, ok := ToNumber(s)
	if !ok {
		return nil
	}
	return &v
}
