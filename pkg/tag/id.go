package tag

import (
	"fmt"
	"strings"
)

// IDFormat selects the identity rendering sent to collectors.
type IDFormat int

// Identity renderings.
const (
	// IDDecimal renders "{country}-{card:012}" in decimal.
	IDDecimal IDFormat = iota
	// IDHex renders the ten card field digits, most significant first.
	IDHex
)

func (f IDFormat) String() string {
	switch f {
	case IDDecimal:
		return "decimal"
	case IDHex:
		return "hex"
	}
	return fmt.Sprintf("IDFormat(%d)", int(f))
}

// ParseIDFormat parses "decimal" or "hex".
func ParseIDFormat(s string) (IDFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "decimal", "dec":
		return IDDecimal, nil
	case "hex":
		return IDHex, nil
	}
	return IDDecimal, fmt.Errorf("unknown id format %q", s)
}

// ID returns the decimal identity, e.g. "17185-654820258320".
func (r Record) ID() string {
	return fmt.Sprintf("%d-%012d", r.CountryCode, r.CardNumber)
}

// HexID returns the raw card field characters with the wire reversal undone,
// e.g. "9876543210". Non-hex characters are kept as received.
func (r Record) HexID() string {
	var b [len(r.CardField)]byte
	for i, c := range r.CardField {
		b[len(b)-1-i] = c
	}
	return string(b[:])
}

// Identity returns the rendering selected by f.
func (r Record) Identity(f IDFormat) string {
	if f == IDHex {
		return r.HexID()
	}
	return r.ID()
}
