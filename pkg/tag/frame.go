// Package tag decodes the 30-byte animal tag frame captured from the reader.
//
// Frame layout (byte offsets):
//
//	[0]        header
//	[1..11)    card number, ASCII hex, least significant digit first
//	[11..15)   country code, ASCII hex, least significant digit first
//	[15]       data flag
//	[16]       animal flag
//	[17..21)   reserved
//	[21..27)   user data
//	[27..29)   checksum
//	[29]       trailer
package tag

import (
	"fmt"
	"strconv"
)

// FrameSize is the size of a captured frame.
const FrameSize = 30

const (
	offHeader   = 0
	offCard     = 1
	offCountry  = 11
	offData     = 15
	offAnimal   = 16
	offReserved = 17
	offUser     = 21
	offChecksum = 27
	offTrailer  = 29
)

// Frame is a raw capture.
type Frame [FrameSize]byte

// Record is a decoded Frame.
// The checksum is carried as received and never verified.
type Record struct {
	Header      byte
	CardNumber  uint64
	CountryCode uint32
	DataFlag    byte
	AnimalFlag  byte
	Reserved    [4]byte
	UserData    [6]byte
	Checksum    [2]byte
	Trailer     byte

	// CardField and CountryField keep the raw digits in wire order.
	CardField    [10]byte
	CountryField [4]byte
}

// Decode decodes a frame field by field. It never fails: a numeric field
// that is not valid hex decodes to 0 and the other fields are unaffected.
func Decode(f Frame) Record {
	r := Record{
		Header:     f[offHeader],
		DataFlag:   f[offData],
		AnimalFlag: f[offAnimal],
		Trailer:    f[offTrailer],
	}
	copy(r.CardField[:], f[offCard:offCountry])
	copy(r.CountryField[:], f[offCountry:offData])
	copy(r.Reserved[:], f[offReserved:offUser])
	copy(r.UserData[:], f[offUser:offChecksum])
	copy(r.Checksum[:], f[offChecksum:offTrailer])
	r.CardNumber = parseReversedHex(r.CardField[:])
	r.CountryCode = uint32(parseReversedHex(r.CountryField[:]))
	return r
}

// DecodeBytes decodes the first FrameSize bytes of b.
func DecodeBytes(b []byte) (Record, error) {
	if len(b) < FrameSize {
		return Record{}, fmt.Errorf("short frame: %d bytes", len(b))
	}
	var f Frame
	copy(f[:], b)
	return Decode(f), nil
}

func parseReversedHex(field []byte) uint64 {
	digits := make([]byte, len(field))
	for n, c := range field {
		digits[len(field)-1-n] = c
	}
	v, err := strconv.ParseUint(string(digits), 16, 64)
	if err != nil {
		return 0
	}
	return v
}

// NewRecord creates a Record for the card and country with the framing
// bytes a reader produces.
func NewRecord(country uint32, card uint64) Record {
	r := Record{
		Header:      0x02,
		CardNumber:  card,
		CountryCode: country,
		DataFlag:    0x01,
		AnimalFlag:  0x00,
		Trailer:     0x03,
	}
	fillReversedHex(r.CardField[:], card)
	fillReversedHex(r.CountryField[:], uint64(country))
	return r
}

// Encode renders the Record into a Frame. The digit fields are regenerated
// from CardNumber and CountryCode, so values wider than the field keep only
// the low digits.
func Encode(r Record) Frame {
	var f Frame
	f[offHeader] = r.Header
	fillReversedHex(f[offCard:offCountry], r.CardNumber)
	fillReversedHex(f[offCountry:offData], uint64(r.CountryCode))
	f[offData] = r.DataFlag
	f[offAnimal] = r.AnimalFlag
	copy(f[offReserved:offUser], r.Reserved[:])
	copy(f[offUser:offChecksum], r.UserData[:])
	copy(f[offChecksum:offTrailer], r.Checksum[:])
	f[offTrailer] = r.Trailer
	return f
}

func fillReversedHex(field []byte, v uint64) {
	const digits = "0123456789ABCDEF"
	for n := range field {
		field[n] = digits[v&0xf]
		v >>= 4
	}
}
