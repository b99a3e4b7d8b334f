package rpc

import (
	"bytes"
	"testing"

	"github.com/oio-go/blobkit/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msg := []byte("hello-message")
	value := []byte("hello-value")

	require.NoError(t, WriteFrame(&buf, msg, value))

	gotMsg, gotValue, st := ReadFrame(&buf, 1<<20)
	require.True(t, st.Ok())
	assert.Equal(t, msg, gotMsg)
	assert.Equal(t, value, gotValue)
}

func TestFrameRejectsOversizedMessage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, make([]byte, 100), nil))

	_, _, st := ReadFrame(&buf, 10)
	assert.Equal(t, status.ProtocolError, st.Cause)
}

func TestFrameRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBuffer([]byte{'X', 0, 0, 0, 0, 0, 0, 0, 0})
	_, _, st := ReadFrame(buf, 1<<20)
	assert.Equal(t, status.ProtocolError, st.Cause)
}

func TestHMACRoundTrip(t *testing.T) {
	secret := []byte("shared-secret")
	cmdBytes := []byte("some-command-bytes")

	mac := ComputeHMAC(secret, cmdBytes)
	assert.True(t, VerifyHMAC(secret, cmdBytes, mac))
	assert.False(t, VerifyHMAC([]byte("wrong-secret"), cmdBytes, mac))
	assert.False(t, VerifyHMAC(secret, []byte("tampered"), mac))
}

func TestCommandRoundTripPut(t *testing.T) {
	h := Header{ClusterVersion: 1, ConnectionID: 42, Sequence: 7, TimeoutMs: 30000}
	cmd := NewPutCommand(h, []byte("chunk-0-4096"), []byte("sha1tag"), []byte("v2"), []byte("v1"), true)

	data := cmd.Marshal()
	got, err := UnmarshalCommand(data)
	require.NoError(t, err)

	assert.Equal(t, int64(1), got.Header.ClusterVersion)
	assert.Equal(t, int64(42), got.Header.ConnectionID)
	assert.Equal(t, int64(7), got.Header.Sequence)
	assert.Equal(t, TypePut, got.Header.MessageType)
	require.NotNil(t, got.KeyValue)
	assert.Equal(t, []byte("chunk-0-4096"), got.KeyValue.Key)
	assert.Equal(t, []byte("sha1tag"), got.KeyValue.Tag)
	assert.Equal(t, []byte("v2"), got.KeyValue.NewVersion)
	assert.Equal(t, []byte("v1"), got.KeyValue.OldVersion)
	assert.Equal(t, int32(1), got.KeyValue.Synchronization)
}

func TestCommandRoundTripGetKeyRange(t *testing.T) {
	h := Header{Sequence: 1}
	cmd := NewGetKeyRangeCommand(h, []byte("chunk-#"), []byte("chunk-$"), true, false, 100)

	data := cmd.Marshal()
	got, err := UnmarshalCommand(data)
	require.NoError(t, err)

	require.NotNil(t, got.Range)
	assert.Equal(t, []byte("chunk-#"), got.Range.StartKey)
	assert.Equal(t, []byte("chunk-$"), got.Range.EndKey)
	assert.True(t, got.Range.StartKeyInclusive)
	assert.False(t, got.Range.EndKeyInclusive)
	assert.Equal(t, int32(100), got.Range.MaxReturned)
}

func TestCommandRoundTripGetKeyRangeReplyKeys(t *testing.T) {
	reply := &Command{
		Header: Header{Sequence: 1, MessageType: TypeGetKeyRange},
		Range: &RangeBody{
			Keys: [][]byte{[]byte("a-0-10"), []byte("a-1-10"), []byte("a-#")},
		},
		Status: CommandStatus{Code: StatusSuccess},
	}

	got, err := UnmarshalCommand(reply.Marshal())
	require.NoError(t, err)
	require.NotNil(t, got.Range)
	assert.Equal(t, reply.Range.Keys, got.Range.Keys)
}

func TestCommandRoundTripGetLog(t *testing.T) {
	h := Header{Sequence: 9}
	reply := &Command{
		Header: h,
		GetLog: &GetLogBody{
			Types:              []int32{GetLogCapacities, GetLogTemperatures, GetLogUtilizations},
			CPUPercent:         12.5,
			TemperatureCelsius: 41.0,
			SpaceFreePercent:   83.2,
			IOPercent:          7.75,
		},
		Status: CommandStatus{Code: StatusSuccess},
	}

	got, err := UnmarshalCommand(reply.Marshal())
	require.NoError(t, err)
	require.NotNil(t, got.GetLog)
	assert.Equal(t, reply.GetLog.Types, got.GetLog.Types)
	assert.InDelta(t, 12.5, got.GetLog.CPUPercent, 0.0001)
	assert.InDelta(t, 41.0, got.GetLog.TemperatureCelsius, 0.0001)
	assert.InDelta(t, 83.2, got.GetLog.SpaceFreePercent, 0.0001)
	assert.InDelta(t, 7.75, got.GetLog.IOPercent, 0.0001)
}

func TestStatusCodeToStatus(t *testing.T) {
	assert.True(t, StatusSuccess.ToStatus("").Ok())
	assert.Equal(t, status.NotFound, StatusNotFound.ToStatus("missing").Cause)
	assert.Equal(t, status.Already, StatusVersionMismatch.ToStatus("stale").Cause)
	assert.Equal(t, status.ProtocolError, StatusHmacFailure.ToStatus("bad mac").Cause)
	assert.Equal(t, status.Forbidden, StatusInvalidRequest.ToStatus("bad request").Cause)
	assert.Equal(t, status.InternalError, StatusInternalError.ToStatus("boom").Cause)
}

func TestEncodeDecodeReplyRoundTrip(t *testing.T) {
	secret := []byte("drive-secret")
	cmd := NewStatusReply(Header{Sequence: 3, MessageType: TypeDelete}, StatusSuccess, "")

	msgBytes := EncodeRequest(secret, 1, cmd)

	got, st := DecodeReply(secret, msgBytes)
	require.True(t, st.Ok())
	assert.Equal(t, int64(3), got.Header.Sequence)
	assert.Equal(t, StatusSuccess, got.Status.Code)
}

func TestDecodeReplyRejectsBadHMAC(t *testing.T) {
	secret := []byte("drive-secret")
	cmd := NewStatusReply(Header{Sequence: 3}, StatusSuccess, "")
	msgBytes := EncodeRequest(secret, 1, cmd)

	_, st := DecodeReply([]byte("wrong-secret"), msgBytes)
	assert.Equal(t, status.ProtocolError, st.Cause)
}
