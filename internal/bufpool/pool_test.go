package bufpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetLengthMatchesRequest(t *testing.T) {
	for _, n := range []int{1, 255, 256, 257, 4096, 65535, 65539} {
		buf := Get(n)
		require.Len(t, buf, n)
		Put(buf)
	}
}

func TestGetRoundsCapacityUpToClass(t *testing.T) {
	require.Equal(t, 256, cap(Get(10)))
	require.Equal(t, 4096, cap(Get(300)))
	// The largest legal chunk body, and the frame holding it.
	require.Equal(t, 65539, cap(Get(65535)))
	require.Equal(t, 65539, cap(Get(65539)))
}

func TestOversizedRequestBypassesPool(t *testing.T) {
	buf := Get(70000)
	require.Len(t, buf, 70000)
	require.Equal(t, 70000, cap(buf))
	Put(buf) // no class matches; dropped
}

func TestPutZeroesBeforeReuse(t *testing.T) {
	p := New()
	buf := p.Get(256)
	for i := range buf {
		buf[i] = 0xFF
	}
	p.Put(buf)

	again := p.Get(256)
	for i, b := range again {
		require.Zerof(t, b, "byte %d not cleared", i)
	}
}

func TestNilPoolAndDegenerateRequests(t *testing.T) {
	require.Nil(t, Get(0))
	require.Nil(t, Get(-1))
	Put(nil)

	var p *Pool
	require.Nil(t, p.Get(8))
	p.Put([]byte{1}) // no-op
}
