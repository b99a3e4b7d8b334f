package rpc

import (
	"github.com/oio-go/blobkit/status"
)

// EncodeRequest serialises cmd and wraps it in an authenticated Message
// envelope, ready to hand to WriteFrame as the frame's message segment.
func EncodeRequest(secret []byte, identity int64, cmd *Command) []byte {
	cmdBytes := cmd.Marshal()
	msg := &Message{
		CommandBytes: cmdBytes,
		Identity:     identity,
		HMAC:         ComputeHMAC(secret, cmdBytes),
	}
	return msg.Marshal()
}

// DecodeReply parses a frame's message segment into a Command, verifying
// its HMAC under secret. A bad HMAC or malformed envelope yields a
// ProtocolError status (spec.md §4.3: "Presence and correctness
// verified on every reply").
func DecodeReply(secret []byte, msgBytes []byte) (*Command, status.Status) {
	msg, err := UnmarshalMessage(msgBytes)
	if err != nil {
		return nil, status.New(status.ProtocolError, "rpc: unmarshal message: %v", err)
	}
	if !VerifyHMAC(secret, msg.CommandBytes, msg.HMAC) {
		return nil, status.New(status.ProtocolError, "rpc: hmac verification failed")
	}
	cmd, err := UnmarshalCommand(msg.CommandBytes)
	if err != nil {
		return nil, status.New(status.ProtocolError, "rpc: unmarshal command: %v", err)
	}
	return cmd, status.Ok()
}

// Algorithm constants for KeyValueBody.Algorithm; this module only ever
// uses SHA1 (spec.md §4.3: "tag(SHA-1(value)), algorithm=SHA1").
const AlgorithmSHA1 int32 = 0

// NewPutCommand builds a PUT request Command.
func NewPutCommand(h Header, key, tag, newVersion, oldVersion []byte, synchronize bool) *Command {
	h.MessageType = TypePut
	sync := int32(0)
	if synchronize {
		sync = 1
	}
	return &Command{
		Header: h,
		KeyValue: &KeyValueBody{
			Key:             key,
			Tag:             tag,
			Algorithm:       AlgorithmSHA1,
			Synchronization: sync,
			NewVersion:      newVersion,
			OldVersion:      oldVersion,
		},
	}
}

// NewGetCommand builds a GET request Command.
func NewGetCommand(h Header, key []byte) *Command {
	h.MessageType = TypeGet
	return &Command{
		Header:   h,
		KeyValue: &KeyValueBody{Key: key, Algorithm: AlgorithmSHA1},
	}
}

// NewGetNextCommand builds a GETNEXT request Command.
func NewGetNextCommand(h Header, key []byte) *Command {
	h.MessageType = TypeGetNext
	return &Command{
		Header:   h,
		KeyValue: &KeyValueBody{Key: key},
	}
}

// NewGetKeyRangeCommand builds a GETKEYRANGE request Command.
func NewGetKeyRangeCommand(h Header, startKey, endKey []byte, startInclusive, endInclusive bool, maxReturned int32) *Command {
	h.MessageType = TypeGetKeyRange
	return &Command{
		Header: h,
		Range: &RangeBody{
			StartKey:          startKey,
			EndKey:            endKey,
			StartKeyInclusive: startInclusive,
			EndKeyInclusive:   endInclusive,
			MaxReturned:       maxReturned,
		},
	}
}

// NewDeleteCommand builds a DELETE request Command.
func NewDeleteCommand(h Header, key []byte, synchronize bool) *Command {
	h.MessageType = TypeDelete
	sync := int32(0)
	if synchronize {
		sync = 1
	}
	return &Command{
		Header:   h,
		KeyValue: &KeyValueBody{Key: key, Synchronization: sync},
	}
}

// GetLogCapacities, GetLogTemperatures, and GetLogUtilizations are the
// GETLOG request types (spec.md §4.3: "types=[CAPACITIES, TEMPERATURES,
// UTILIZATIONS]").
const (
	GetLogCapacities int32 = iota + 1
	GetLogTemperatures
	GetLogUtilizations
)

// NewGetLogCommand builds a GETLOG request Command.
func NewGetLogCommand(h Header, types []int32) *Command {
	h.MessageType = TypeGetLog
	return &Command{
		Header: h,
		GetLog: &GetLogBody{Types: types},
	}
}

// NewStatusReply builds a reply Command carrying only a header and
// status, used by PUT/DELETE replies and by a fake drive's error
// responses.
func NewStatusReply(h Header, code StatusCode, detail string) *Command {
	return &Command{
		Header: h,
		Status: CommandStatus{Code: code, DetailMessage: detail},
	}
}
