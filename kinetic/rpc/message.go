package rpc

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldMessageCommandBytes = 1
	fieldMessageAuth         = 2

	fieldAuthIdentity = 1
	fieldAuthHMAC     = 2
)

// Message is the outer Protobuf envelope carried in a frame's message
// segment: the serialised Command plus its HMAC authentication
// (spec.md §4.3).
type Message struct {
	CommandBytes []byte
	Identity     int64
	HMAC         []byte
}

// Marshal serialises the envelope to its wire bytes.
func (m *Message) Marshal() []byte {
	var b []byte
	b = appendBytesField(b, fieldMessageCommandBytes, m.CommandBytes)

	var auth []byte
	auth = appendVarintField(auth, fieldAuthIdentity, uint64(m.Identity))
	auth = appendBytesField(auth, fieldAuthHMAC, m.HMAC)
	b = appendSubmessage(b, fieldMessageAuth, auth)

	return b
}

// UnmarshalMessage parses wire bytes produced by Message.Marshal.
func UnmarshalMessage(data []byte) (*Message, error) {
	m := &Message{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("rpc: malformed message tag")
		}
		data = data[n:]
		switch num {
		case fieldMessageCommandBytes:
			v, rest, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			m.CommandBytes = v
			data = rest
		case fieldMessageAuth:
			inner, rest, err := consumeSubmessage(data, typ)
			if err != nil {
				return nil, err
			}
			if err := unmarshalAuth(m, inner); err != nil {
				return nil, err
			}
			data = rest
		default:
			rest, err := skipField(data, typ)
			if err != nil {
				return nil, err
			}
			data = rest
		}
	}
	return m, nil
}

func unmarshalAuth(m *Message, data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("rpc: malformed auth tag")
		}
		data = data[n:]
		switch num {
		case fieldAuthIdentity:
			v, rest, err := consumeVarint(data, typ)
			if err != nil {
				return err
			}
			m.Identity = int64(v)
			data = rest
		case fieldAuthHMAC:
			v, rest, err := consumeBytes(data, typ)
			if err != nil {
				return err
			}
			m.HMAC = v
			data = rest
		default:
			rest, err := skipField(data, typ)
			if err != nil {
				return err
			}
			data = rest
		}
	}
	return nil
}
