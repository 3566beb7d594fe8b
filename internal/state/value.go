package state

import (
	"math"
	"strconv"
	"strings"
)

// Kind is the JSON type a telemetry value was reported as.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	// KindRaw holds nested objects and arrays as compact JSON text.
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Value is a single telemetry reading. Values are comparable: two values are
// equal only when both kind and payload match, so the number 1 and the string
// "1" differ.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

func String(s string) Value { return Value{kind: KindString, str: s} }

func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Null() Value { return Value{kind: KindNull} }

// Raw wraps compact JSON text of a nested object or array.
func Raw(text string) Value { return Value{kind: KindRaw, str: text} }

func (v Value) Kind() Kind { return v.kind }

// String renders the value the way action lookups see it. Numbers follow the
// ECMAScript Number-to-String rules for the common cases: integral values have
// no fraction, magnitudes of 1e21 and above use exponent form.
func (v Value) String() string {
	switch v.kind {
	case KindString, KindRaw:
		return v.str
	case KindNumber:
		return formatNumber(v.num)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "null"
	}
}

func formatNumber(f float64) string {
	if f == 0 {
		// covers -0
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		// Go pads the exponent to two digits (1e+07); JS does not.
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[0]
		digits := strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + string(sign) + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
