package rpc

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/oio-go/blobkit/status"
)

// MessageType identifies which exchange a Command carries, for both the
// request and its reply (spec.md §4.3 "Exchange types").
type MessageType int32

const (
	TypePut MessageType = iota + 1
	TypeGet
	TypeGetNext
	TypeGetKeyRange
	TypeDelete
	TypeGetLog
)

// StatusCode is the Command-level reply status, distinct from the
// transport-level status.Status a caller ultimately sees; rpc.ToStatus
// maps between the two.
type StatusCode int32

const (
	StatusSuccess StatusCode = iota
	StatusNotFound
	StatusVersionMismatch
	StatusHmacFailure
	StatusInvalidRequest
	StatusInternalError
)

// ToStatus maps a Kinetic StatusCode onto the module's Cause taxonomy
// (spec.md §6 "Status to external mapping").
func (c StatusCode) ToStatus(detail string) status.Status {
	switch c {
	case StatusSuccess:
		return status.Ok()
	case StatusNotFound:
		return status.New(status.NotFound, "kinetic: %s", detail)
	case StatusVersionMismatch:
		return status.New(status.Already, "kinetic: %s", detail)
	case StatusHmacFailure:
		return status.New(status.ProtocolError, "kinetic: %s", detail)
	case StatusInvalidRequest:
		return status.New(status.Forbidden, "kinetic: %s", detail)
	default:
		return status.New(status.InternalError, "kinetic: %s", detail)
	}
}

// Header carries the per-connection and per-exchange routing fields
// (spec.md §4.3, §4.4 "Context").
type Header struct {
	ClusterVersion int64
	ConnectionID   int64
	Sequence       int64
	MessageType    MessageType
	TimeoutMs      int64
}

// KeyValueBody is the PUT/GET/GETNEXT/DELETE body shape.
type KeyValueBody struct {
	Key             []byte
	NewVersion      []byte
	OldVersion      []byte
	Tag             []byte // SHA-1(value), set by the caller on PUT
	Algorithm       int32  // always SHA1 (0) in this module
	Synchronization int32
}

// RangeBody is the GETKEYRANGE request/reply body shape.
type RangeBody struct {
	StartKey          []byte
	EndKey             []byte
	StartKeyInclusive bool
	EndKeyInclusive   bool
	MaxReturned       int32
	Keys              [][]byte // reply only
}

// GetLogBody is the GETLOG request/reply body shape.
type GetLogBody struct {
	Types              []int32
	CPUPercent         float64
	TemperatureCelsius float64
	SpaceFreePercent   float64
	IOPercent          float64
}

// CommandStatus is the Command-level reply status envelope.
type CommandStatus struct {
	Code          StatusCode
	DetailMessage string
}

// Command is one Kinetic request or reply, serialised hand-rolled
// Protobuf (spec.md §4.3): a header, exactly one of the three body
// shapes (nil otherwise), and a status (meaningful on replies only).
type Command struct {
	Header   Header
	KeyValue *KeyValueBody
	Range    *RangeBody
	GetLog   *GetLogBody
	Status   CommandStatus
}

const (
	fieldCommandHeader = 1
	fieldCommandBody   = 2
	fieldCommandStatus = 3

	fieldHeaderClusterVersion = 1
	fieldHeaderConnectionID   = 2
	fieldHeaderSequence       = 3
	fieldHeaderMessageType    = 4
	fieldHeaderTimeoutMs      = 5

	fieldBodyKeyValue = 1
	fieldBodyRange    = 2
	fieldBodyGetLog   = 3

	fieldKVKey             = 1
	fieldKVNewVersion      = 2
	fieldKVOldVersion      = 3
	fieldKVTag             = 4
	fieldKVAlgorithm       = 5
	fieldKVSynchronization = 6

	fieldRangeStartKey          = 1
	fieldRangeEndKey            = 2
	fieldRangeStartKeyInclusive = 3
	fieldRangeEndKeyInclusive   = 4
	fieldRangeMaxReturned       = 5
	fieldRangeKeys              = 6

	fieldGetLogTypes              = 1
	fieldGetLogCPUPercent         = 2
	fieldGetLogTemperatureCelsius = 3
	fieldGetLogSpaceFreePercent   = 4
	fieldGetLogIOPercent          = 5

	fieldStatusCode          = 1
	fieldStatusDetailMessage = 2
)

// Marshal serialises the Command to its wire bytes.
func (c *Command) Marshal() []byte {
	var b []byte
	b = appendSubmessage(b, fieldCommandHeader, marshalHeader(c.Header))

	if body := marshalBody(c); len(body) > 0 {
		b = appendSubmessage(b, fieldCommandBody, body)
	}

	if st := marshalStatus(c.Status); len(st) > 0 {
		b = appendSubmessage(b, fieldCommandStatus, st)
	}
	return b
}

func marshalHeader(h Header) []byte {
	var b []byte
	b = appendVarintField(b, fieldHeaderClusterVersion, uint64(h.ClusterVersion))
	b = appendVarintField(b, fieldHeaderConnectionID, uint64(h.ConnectionID))
	b = appendVarintField(b, fieldHeaderSequence, uint64(h.Sequence))
	b = appendVarintField(b, fieldHeaderMessageType, uint64(h.MessageType))
	b = appendVarintField(b, fieldHeaderTimeoutMs, uint64(h.TimeoutMs))
	return b
}

func marshalBody(c *Command) []byte {
	var b []byte
	if c.KeyValue != nil {
		b = appendSubmessage(b, fieldBodyKeyValue, marshalKeyValue(c.KeyValue))
	}
	if c.Range != nil {
		b = appendSubmessage(b, fieldBodyRange, marshalRange(c.Range))
	}
	if c.GetLog != nil {
		b = appendSubmessage(b, fieldBodyGetLog, marshalGetLog(c.GetLog))
	}
	return b
}

func marshalKeyValue(kv *KeyValueBody) []byte {
	var b []byte
	if len(kv.Key) > 0 {
		b = appendBytesField(b, fieldKVKey, kv.Key)
	}
	if len(kv.NewVersion) > 0 {
		b = appendBytesField(b, fieldKVNewVersion, kv.NewVersion)
	}
	if len(kv.OldVersion) > 0 {
		b = appendBytesField(b, fieldKVOldVersion, kv.OldVersion)
	}
	if len(kv.Tag) > 0 {
		b = appendBytesField(b, fieldKVTag, kv.Tag)
	}
	b = appendVarintField(b, fieldKVAlgorithm, uint64(kv.Algorithm))
	b = appendVarintField(b, fieldKVSynchronization, uint64(kv.Synchronization))
	return b
}

func marshalRange(r *RangeBody) []byte {
	var b []byte
	if len(r.StartKey) > 0 {
		b = appendBytesField(b, fieldRangeStartKey, r.StartKey)
	}
	if len(r.EndKey) > 0 {
		b = appendBytesField(b, fieldRangeEndKey, r.EndKey)
	}
	b = appendBoolField(b, fieldRangeStartKeyInclusive, r.StartKeyInclusive)
	b = appendBoolField(b, fieldRangeEndKeyInclusive, r.EndKeyInclusive)
	b = appendVarintField(b, fieldRangeMaxReturned, uint64(r.MaxReturned))
	for _, k := range r.Keys {
		b = appendBytesField(b, fieldRangeKeys, k)
	}
	return b
}

func marshalGetLog(g *GetLogBody) []byte {
	var b []byte
	for _, t := range g.Types {
		b = appendVarintField(b, fieldGetLogTypes, uint64(t))
	}
	b = appendFixed64Field(b, fieldGetLogCPUPercent, g.CPUPercent)
	b = appendFixed64Field(b, fieldGetLogTemperatureCelsius, g.TemperatureCelsius)
	b = appendFixed64Field(b, fieldGetLogSpaceFreePercent, g.SpaceFreePercent)
	b = appendFixed64Field(b, fieldGetLogIOPercent, g.IOPercent)
	return b
}

func marshalStatus(s CommandStatus) []byte {
	var b []byte
	b = appendVarintField(b, fieldStatusCode, uint64(s.Code))
	if s.DetailMessage != "" {
		b = appendBytesField(b, fieldStatusDetailMessage, []byte(s.DetailMessage))
	}
	return b
}

// UnmarshalCommand parses wire bytes produced by Command.Marshal.
func UnmarshalCommand(data []byte) (*Command, error) {
	c := &Command{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("rpc: malformed command tag")
		}
		data = data[n:]

		switch num {
		case fieldCommandHeader:
			inner, rest, err := consumeSubmessage(data, typ)
			if err != nil {
				return nil, err
			}
			if c.Header, err = unmarshalHeader(inner); err != nil {
				return nil, err
			}
			data = rest
		case fieldCommandBody:
			inner, rest, err := consumeSubmessage(data, typ)
			if err != nil {
				return nil, err
			}
			if err := unmarshalBody(c, inner); err != nil {
				return nil, err
			}
			data = rest
		case fieldCommandStatus:
			inner, rest, err := consumeSubmessage(data, typ)
			if err != nil {
				return nil, err
			}
			if c.Status, err = unmarshalStatus(inner); err != nil {
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
	return c, nil
}

func unmarshalHeader(data []byte) (Header, error) {
	var h Header
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return h, fmt.Errorf("rpc: malformed header tag")
		}
		data = data[n:]
		switch num {
		case fieldHeaderClusterVersion:
			v, rest, err := consumeVarint(data, typ)
			if err != nil {
				return h, err
			}
			h.ClusterVersion = int64(v)
			data = rest
		case fieldHeaderConnectionID:
			v, rest, err := consumeVarint(data, typ)
			if err != nil {
				return h, err
			}
			h.ConnectionID = int64(v)
			data = rest
		case fieldHeaderSequence:
			v, rest, err := consumeVarint(data, typ)
			if err != nil {
				return h, err
			}
			h.Sequence = int64(v)
			data = rest
		case fieldHeaderMessageType:
			v, rest, err := consumeVarint(data, typ)
			if err != nil {
				return h, err
			}
			h.MessageType = MessageType(v)
			data = rest
		case fieldHeaderTimeoutMs:
			v, rest, err := consumeVarint(data, typ)
			if err != nil {
				return h, err
			}
			h.TimeoutMs = int64(v)
			data = rest
		default:
			rest, err := skipField(data, typ)
			if err != nil {
				return h, err
			}
			data = rest
		}
	}
	return h, nil
}

func unmarshalBody(c *Command, data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("rpc: malformed body tag")
		}
		data = data[n:]
		switch num {
		case fieldBodyKeyValue:
			inner, rest, err := consumeSubmessage(data, typ)
			if err != nil {
				return err
			}
			kv, err := unmarshalKeyValue(inner)
			if err != nil {
				return err
			}
			c.KeyValue = kv
			data = rest
		case fieldBodyRange:
			inner, rest, err := consumeSubmessage(data, typ)
			if err != nil {
				return err
			}
			r, err := unmarshalRange(inner)
			if err != nil {
				return err
			}
			c.Range = r
			data = rest
		case fieldBodyGetLog:
			inner, rest, err := consumeSubmessage(data, typ)
			if err != nil {
				return err
			}
			g, err := unmarshalGetLog(inner)
			if err != nil {
				return err
			}
			c.GetLog = g
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

func unmarshalKeyValue(data []byte) (*KeyValueBody, error) {
	kv := &KeyValueBody{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("rpc: malformed keyvalue tag")
		}
		data = data[n:]
		switch num {
		case fieldKVKey:
			v, rest, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			kv.Key = v
			data = rest
		case fieldKVNewVersion:
			v, rest, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			kv.NewVersion = v
			data = rest
		case fieldKVOldVersion:
			v, rest, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			kv.OldVersion = v
			data = rest
		case fieldKVTag:
			v, rest, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			kv.Tag = v
			data = rest
		case fieldKVAlgorithm:
			v, rest, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			kv.Algorithm = int32(v)
			data = rest
		case fieldKVSynchronization:
			v, rest, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			kv.Synchronization = int32(v)
			data = rest
		default:
			rest, err := skipField(data, typ)
			if err != nil {
				return nil, err
			}
			data = rest
		}
	}
	return kv, nil
}

func unmarshalRange(data []byte) (*RangeBody, error) {
	r := &RangeBody{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("rpc: malformed range tag")
		}
		data = data[n:]
		switch num {
		case fieldRangeStartKey:
			v, rest, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			r.StartKey = v
			data = rest
		case fieldRangeEndKey:
			v, rest, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			r.EndKey = v
			data = rest
		case fieldRangeStartKeyInclusive:
			v, rest, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			r.StartKeyInclusive = v != 0
			data = rest
		case fieldRangeEndKeyInclusive:
			v, rest, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			r.EndKeyInclusive = v != 0
			data = rest
		case fieldRangeMaxReturned:
			v, rest, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			r.MaxReturned = int32(v)
			data = rest
		case fieldRangeKeys:
			v, rest, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			r.Keys = append(r.Keys, v)
			data = rest
		default:
			rest, err := skipField(data, typ)
			if err != nil {
				return nil, err
			}
			data = rest
		}
	}
	return r, nil
}

func unmarshalGetLog(data []byte) (*GetLogBody, error) {
	g := &GetLogBody{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("rpc: malformed getlog tag")
		}
		data = data[n:]
		switch num {
		case fieldGetLogTypes:
			v, rest, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			g.Types = append(g.Types, int32(v))
			data = rest
		case fieldGetLogCPUPercent:
			v, rest, err := consumeFixed64(data, typ)
			if err != nil {
				return nil, err
			}
			g.CPUPercent = v
			data = rest
		case fieldGetLogTemperatureCelsius:
			v, rest, err := consumeFixed64(data, typ)
			if err != nil {
				return nil, err
			}
			g.TemperatureCelsius = v
			data = rest
		case fieldGetLogSpaceFreePercent:
			v, rest, err := consumeFixed64(data, typ)
			if err != nil {
				return nil, err
			}
			g.SpaceFreePercent = v
			data = rest
		case fieldGetLogIOPercent:
			v, rest, err := consumeFixed64(data, typ)
			if err != nil {
				return nil, err
			}
			g.IOPercent = v
			data = rest
		default:
			rest, err := skipField(data, typ)
			if err != nil {
				return nil, err
			}
			data = rest
		}
	}
	return g, nil
}

func unmarshalStatus(data []byte) (CommandStatus, error) {
	var s CommandStatus
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return s, fmt.Errorf("rpc: malformed status tag")
		}
		data = data[n:]
		switch num {
		case fieldStatusCode:
			v, rest, err := consumeVarint(data, typ)
			if err != nil {
				return s, err
			}
			s.Code = StatusCode(v)
			data = rest
		case fieldStatusDetailMessage:
			v, rest, err := consumeBytes(data, typ)
			if err != nil {
				return s, err
			}
			s.DetailMessage = string(v)
			data = rest
		default:
			rest, err := skipField(data, typ)
			if err != nil {
				return s, err
			}
			data = rest
		}
	}
	return s, nil
}

// --- low-level protowire helpers ---

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	x := uint64(0)
	if v {
		x = 1
	}
	return appendVarintField(b, num, x)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendFixed64Field(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendSubmessage(b []byte, num protowire.Number, inner []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner)
}

func consumeSubmessage(data []byte, typ protowire.Type) ([]byte, []byte, error) {
	if typ != protowire.BytesType {
		return nil, nil, fmt.Errorf("rpc: expected submessage, got wire type %d", typ)
	}
	v, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, nil, fmt.Errorf("rpc: malformed submessage")
	}
	return v, data[n:], nil
}

func consumeVarint(data []byte, typ protowire.Type) (uint64, []byte, error) {
	if typ != protowire.VarintType {
		return 0, nil, fmt.Errorf("rpc: expected varint, got wire type %d", typ)
	}
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return 0, nil, fmt.Errorf("rpc: malformed varint")
	}
	return v, data[n:], nil
}

func consumeBytes(data []byte, typ protowire.Type) ([]byte, []byte, error) {
	if typ != protowire.BytesType {
		return nil, nil, fmt.Errorf("rpc: expected bytes, got wire type %d", typ)
	}
	v, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, nil, fmt.Errorf("rpc: malformed bytes field")
	}
	return v, data[n:], nil
}

func consumeFixed64(data []byte, typ protowire.Type) (float64, []byte, error) {
	if typ != protowire.Fixed64Type {
		return 0, nil, fmt.Errorf("rpc: expected fixed64, got wire type %d", typ)
	}
	v, n := protowire.ConsumeFixed64(data)
	if n < 0 {
		return 0, nil, fmt.Errorf("rpc: malformed fixed64")
	}
	return math.Float64frombits(v), data[n:], nil
}

func skipField(data []byte, typ protowire.Type) ([]byte, error) {
	n := protowire.ConsumeFieldValue(0, typ, data)
	if n < 0 {
		return nil, fmt.Errorf("rpc: malformed field (unknown wire type %d)", typ)
	}
	return data[n:], nil
}
