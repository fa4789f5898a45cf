package models

import (
	"bytes"
	"math"
	"strconv"
	"strings"
)

// Number is a float that survives JSON with non-finite values. NaN and
// infinities encode as null and null decodes as NaN, so a ride created
// from unparseable form input still persists.
type Number float64

func NaN() Number { return Number(math.NaN()) }

func (n Number) IsNaN() bool { return math.IsNaN(float64(n)) }

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = NaN()
		return nil
	}
	if len(b) > 1 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		*n = ParseNumber(s)
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// ParseNumber coerces form input the lenient way: surrounding space is
// ignored, empty input is zero and anything else unparseable is NaN.
func ParseNumber(s string) Number {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return NaN()
	}
	return Number(f)
}
