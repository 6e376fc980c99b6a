package parser

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

func splitSign(s string) (string, bool) {
	s = strings.ReplaceAll(s, "_", "")
	switch {
	case strings.HasPrefix(s, "-"):
		return s[1:], true
	case strings.HasPrefix(s, "+"):
		return s[1:], false
	}
	return s, false
}

// parseInt returns the two's complement bit pattern of a signed or unsigned
// integer literal of the given width.
func parseInt(s string, size int) (uint64, error) {
	mag, neg := splitSign(s)
	base := 10
	if strings.HasPrefix(mag, "0x") || strings.HasPrefix(mag, "0X") {
		base = 16
		mag = mag[2:]
	}
	v, err := strconv.ParseUint(mag, base, size)
	if err != nil {
		return 0, err
	}
	if neg {
		if v > 1<<(size-1) {
			return 0, fmt.Errorf("%s out of range for i%d", s, size)
		}
		return -v, nil
	}
	return v, nil
}

// floatBits handles the inf, nan and nan:0x forms. ok is false for ordinary
// literals.
func floatBits(s string, expBits, mantBits uint) (bitsOut uint64, ok bool, err error) {
	mag, neg := splitSign(s)
	var sign uint64
	if neg {
		sign = 1 << (expBits + mantBits)
	}
	exp := uint64(1)<<expBits - 1
	inf := exp << mantBits

	switch {
	case mag == "inf":
		return sign | inf, true, nil
	case mag == "nan":
		return sign | inf | 1<<(mantBits-1), true, nil
	case strings.HasPrefix(mag, "nan:0x"):
		payload, err := strconv.ParseUint(mag[len("nan:0x"):], 16, 64)
		if err != nil || payload == 0 || payload >= 1<<mantBits {
			return 0, true, fmt.Errorf("invalid nan payload %s", s)
		}
		return sign | inf | payload, true, nil
	}
	return 0, false, nil
}

func normalizeFloat(s string) string {
	s = strings.ReplaceAll(s, "_", "")
	mag, _ := splitSign(s)
	if (strings.HasPrefix(mag, "0x") || strings.HasPrefix(mag, "0X")) && !strings.ContainsAny(mag, "pP") {
		s += "p0"
	}
	return s
}

func parseF64(s string) (float64, error) {
	if b, ok, err := floatBits(s, 11, 52); ok {
		return math.Float64frombits(b), err
	}
	return strconv.ParseFloat(normalizeFloat(s), 64)
}

func parseF32(s string) (float32, error) {
	if b, ok, err := floatBits(s, 8, 23); ok {
		return math.Float32frombits(uint32(b)), err
	}
	v, err := strconv.ParseFloat(normalizeFloat(s), 32)
	return float32(v), err
}

func log2(v uint32) (uint32, bool) {
	if v == 0 || v&(v-1) != 0 {
		return 0, false
	}
	return uint32(bits.TrailingZeros32(v)), true
}
