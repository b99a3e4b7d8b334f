package status

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOk(t *testing.T) {
	require.True(t, Ok().Ok())
	require.False(t, New(NotFound, "missing").Ok())
}

func TestError(t *testing.T) {
	s := New(NetworkError, "dial %s: %v", "10.0.0.1:8080", errors.New("refused"))
	assert.Contains(t, s.Error(), "NetworkError")
	assert.Contains(t, s.Error(), "refused")

	plain := Status{Cause: OK}
	assert.Equal(t, "OK", plain.Error())
}

func TestFromError(t *testing.T) {
	assert.True(t, FromError(nil).Ok())

	s := FromError(errors.New("boom"))
	assert.Equal(t, InternalError, s.Cause)
	assert.Equal(t, "boom", s.Explanation)
}

func TestWorst(t *testing.T) {
	assert.Equal(t, Ok(), Worst(Ok(), Ok()))
	assert.Equal(t, NotFound, Worst(Ok(), New(NotFound, "")).Cause)
	assert.Equal(t, NotFound, Worst(New(NotFound, ""), Ok()).Cause)

	// NetworkError outranks NotFound.
	got := Worst(New(NotFound, "x"), New(NetworkError, "y"))
	assert.Equal(t, NetworkError, got.Cause)

	// InternalError outranks everything.
	got = Worst(New(NetworkError, "x"), New(InternalError, "y"))
	assert.Equal(t, InternalError, got.Cause)
}

func TestCauseString(t *testing.T) {
	assert.Equal(t, "OK", OK.String())
	assert.Equal(t, "Unknown", Cause(999).String())
}
