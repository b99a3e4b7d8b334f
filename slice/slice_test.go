package slice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendCoalesces(t *testing.T) {
	s := New()
	s.Append([]byte("ABCD"))
	s.Append([]byte("EFGH"))
	require.Equal(t, 8, s.Len())
	assert.Equal(t, "ABCDEFGH", string(s.Bytes()))
}

func TestFromBytes(t *testing.T) {
	s := FromBytes([]byte("hello\n"))
	assert.Equal(t, 6, s.Len())
	assert.Equal(t, "hello\n", string(s.Bytes()))
}

func TestResetReusesBuffer(t *testing.T) {
	s := WithCapacity(16)
	s.Append([]byte("12345"))
	s.Reset()
	assert.Equal(t, 0, s.Len())
	s.Append([]byte("xy"))
	assert.Equal(t, "xy", string(s.Bytes()))
}

func TestCloneIsIndependent(t *testing.T) {
	s := New()
	s.Append([]byte("abc"))
	c := s.Clone()
	s.Append([]byte("def"))
	assert.Equal(t, "abc", string(c.Bytes()))
	assert.Equal(t, "abcdef", string(s.Bytes()))
}
