package tag

import (
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/google/uuid"
)

// Event is the message published for a tag read.
type Event struct {
	ID          string `protobuf:"bytes,1,opt,name=id,proto3" json:"id,omitempty"`
	DeviceID    string `protobuf:"bytes,2,opt,name=device_id,json=deviceId,proto3" json:"device_id,omitempty"`
	Identity    string `protobuf:"bytes,3,opt,name=identity,proto3" json:"identity,omitempty"`
	CardNumber  uint64 `protobuf:"varint,4,opt,name=card_number,json=cardNumber,proto3" json:"card_number,omitempty"`
	CountryCode uint32 `protobuf:"varint,5,opt,name=country_code,json=countryCode,proto3" json:"country_code,omitempty"`
	DataFlag    uint32 `protobuf:"varint,6,opt,name=data_flag,json=dataFlag,proto3" json:"data_flag,omitempty"`
	AnimalFlag  uint32 `protobuf:"varint,7,opt,name=animal_flag,json=animalFlag,proto3" json:"animal_flag,omitempty"`
	UserData    []byte `protobuf:"bytes,8,opt,name=user_data,json=userData,proto3" json:"user_data,omitempty"`
	Checksum    []byte `protobuf:"bytes,9,opt,name=checksum,proto3" json:"checksum,omitempty"`
	ReadTime    int64  `protobuf:"varint,10,opt,name=read_time,json=readTime,proto3" json:"read_time,omitempty"`
}

// NewEvent creates an Event with a fresh id for the record.
func NewEvent(deviceID string, r Record, format IDFormat, readAt time.Time) *Event {
	return &Event{
		ID:          uuid.New().String(),
		DeviceID:    deviceID,
		Identity:    r.Identity(format),
		CardNumber:  r.CardNumber,
		CountryCode: r.CountryCode,
		DataFlag:    uint32(r.DataFlag),
		AnimalFlag:  uint32(r.AnimalFlag),
		UserData:    append([]byte(nil), r.UserData[:]...),
		Checksum:    append([]byte(nil), r.Checksum[:]...),
		ReadTime:    readAt.UnixNano(),
	}
}

// ReadAt returns ReadTime as a time.Time.
func (m *Event) ReadAt() time.Time {
	return time.Unix(0, m.ReadTime)
}

// ProtoMessage implements proto.Message.
func (m *Event) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Event) Reset() { *m = Event{} }

// String implements proto.Message.
func (m *Event) String() string { return proto.CompactTextString(m) }

// MarshalEvent encodes the event in protobuf wire format.
func MarshalEvent(m *Event) ([]byte, error) {
	return proto.Marshal(m)
}

// UnmarshalEvent decodes an event from protobuf wire format.
func UnmarshalEvent(data []byte) (*Event, error) {
	m := &Event{}
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}
