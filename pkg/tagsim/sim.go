// Package tagsim simulates a tag reader by writing frames to a serial line.
package tagsim

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/robotalks/tagrelay/pkg/tag"
)

// Simulator writes frames to Output.
type Simulator struct {
	Output io.Writer
	Rand   *rand.Rand
}

// New creates a Simulator writing to w.
func New(w io.Writer) *Simulator {
	return &Simulator{Output: w, Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Present writes the frame of a tag.
func (s *Simulator) Present(country uint32, card uint64) (tag.Record, error) {
	r := tag.NewRecord(country, card)
	f := tag.Encode(r)
	if _, err := s.Output.Write(f[:]); err != nil {
		return r, err
	}
	return tag.Decode(f), nil
}

// PresentRandom writes the frame of a random tag.
func (s *Simulator) PresentRandom() (tag.Record, error) {
	return s.Present(uint32(s.Rand.Intn(1000)), uint64(s.Rand.Int63n(1000000000000)))
}

// Raw writes a frame from hex text, e.g. "02 30 31 ...". Short input is
// padded with zeros and long input truncated to one frame.
func (s *Simulator) Raw(hexText string) (tag.Frame, error) {
	var f tag.Frame
	digits := strings.Join(strings.Fields(hexText), "")
	if len(digits)%2 != 0 {
		return f, fmt.Errorf("odd number of hex digits")
	}
	for n := 0; n < len(digits)/2 && n < tag.FrameSize; n++ {
		v, err := strconv.ParseUint(digits[n*2:n*2+2], 16, 8)
		if err != nil {
			return f, fmt.Errorf("invalid byte %q", digits[n*2:n*2+2])
		}
		f[n] = byte(v)
	}
	_, err := s.Output.Write(f[:])
	return f, err
}

// Garbage writes a frame whose digit fields are not valid hex.
func (s *Simulator) Garbage() (tag.Frame, error) {
	f := tag.Encode(tag.NewRecord(0, 0))
	for n := 1; n < 15; n++ {
		f[n] = byte('G' + s.Rand.Intn(20))
	}
	_, err := s.Output.Write(f[:])
	return f, err
}

// Repeat presents the same tag count times, pausing interval between frames.
func (s *Simulator) Repeat(ctx context.Context, country uint32, card uint64, count int, interval time.Duration) error {
	for n := 0; n < count; n++ {
		if n > 0 && interval > 0 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if _, err := s.Present(country, card); err != nil {
			return err
		}
	}
	return nil
}
