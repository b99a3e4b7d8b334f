package blob

import (
	"testing"

	"github.com/oio-go/blobkit/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineHappyPath(t *testing.T) {
	var m Machine
	require.True(t, m.RequirePrepare().Ok())
	m.EnterPrepared()

	require.True(t, m.RequireWrite().Ok())

	require.True(t, m.RequireTerminal().Ok())
	m.EnterDone()

	assert.Equal(t, status.InternalError, m.RequirePrepare().Cause)
	assert.Equal(t, status.InternalError, m.RequireWrite().Cause)
	assert.Equal(t, status.InternalError, m.RequireTerminal().Cause)
}

func TestMachineRejectsOutOfOrder(t *testing.T) {
	var m Machine
	assert.Equal(t, status.InternalError, m.RequireWrite().Cause)
	assert.Equal(t, status.InternalError, m.RequireTerminal().Cause)
}

func TestUrlRoundTrip(t *testing.T) {
	u, err := ParseUrl("http://10.0.0.1:6000/ABCDEF")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", u.Host)
	assert.Equal(t, 6000, u.Port)
	assert.Equal(t, "ABCDEF", u.ChunkID)
	assert.Equal(t, "http://10.0.0.1:6000/ABCDEF", u.String())
	assert.Equal(t, "10.0.0.1:6000", u.Short())
}

func TestRangeAll(t *testing.T) {
	assert.True(t, All.IsAll())
	assert.Equal(t, uint64(100), All.End(100))

	r := Range{Start: 10, Size: 20}
	assert.False(t, r.IsAll())
	assert.Equal(t, uint64(30), r.End(1000))
	assert.Equal(t, uint64(15), Range{Start: 10, Size: 20}.End(15))
}

func TestFragmentKeys(t *testing.T) {
	assert.Equal(t, "c-0-4", DataFragmentKey("c", 0, 4))
	assert.Equal(t, "c-#", ManifestKey("c"))
	assert.Equal(t, "c-3", FragmentKey("c", 3))
}
