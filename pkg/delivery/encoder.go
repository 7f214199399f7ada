package delivery

import (
	"fmt"

	"github.com/robotalks/tagrelay/pkg/tag"
)

// Pending is the record held by the loop until a send succeeds.
type Pending struct {
	Record tag.Record
	// Event keeps its id across retries so collectors can drop duplicates.
	Event *tag.Event
}

// Encoder renders a Pending record into the payload sent to the collector.
type Encoder interface {
	Encode(*Pending) ([]byte, error)
}

// IdentityEncoder sends the bare identity string.
type IdentityEncoder struct {
	Format tag.IDFormat
}

// Encode implements Encoder.
func (e IdentityEncoder) Encode(p *Pending) ([]byte, error) {
	return []byte(p.Record.Identity(e.Format)), nil
}

// LineEncoder sends the identity terminated by CRLF.
type LineEncoder struct {
	Format tag.IDFormat
}

// Encode implements Encoder.
func (e LineEncoder) Encode(p *Pending) ([]byte, error) {
	return []byte(p.Record.Identity(e.Format) + "\r\n"), nil
}

// ProtoEncoder sends the protobuf encoded tag.Event.
type ProtoEncoder struct{}

// Encode implements Encoder.
func (ProtoEncoder) Encode(p *Pending) ([]byte, error) {
	if p.Event == nil {
		return nil, fmt.Errorf("no event for %s", p.Record.ID())
	}
	return tag.MarshalEvent(p.Event)
}

// NewEncoder creates the Encoder named "identity", "line" or "proto".
func NewEncoder(name string, format tag.IDFormat) (Encoder, error) {
	switch name {
	case "", "identity":
		return IdentityEncoder{Format: format}, nil
	case "line":
		return LineEncoder{Format: format}, nil
	case "proto":
		return ProtoEncoder{}, nil
	}
	return nil, fmt.Errorf("unknown encoding %q", name)
}
