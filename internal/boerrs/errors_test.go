package boerrs

import (
	"context"
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTimeoutErr struct{}

func (fakeTimeoutErr) Error() string { return "fake timeout" }
func (fakeTimeoutErr) Timeout() bool { return true }

func TestIsKindClassification(t *testing.T) {
	root := stdErrors.New("root cause")
	wrapped := fmt.Errorf("adding context: %w", root)
	hs := NewHandshakeError(KindHandshakeFailed, "server.read", wrapped)

	require.True(t, IsKind(hs, KindHandshakeFailed))
	require.True(t, stdErrors.Is(hs, root))

	var he *HandshakeError
	require.True(t, stdErrors.As(hs, &he))
	require.Equal(t, "server.read", he.Op)

	ck := NewChunkError(KindChunkTooLarge, "decode.header", nil)
	require.True(t, IsKind(ck, KindChunkTooLarge))

	ne := NewNetworkError("stream.read", nil)
	require.True(t, IsKind(ne, KindNetworkError))
}

func TestIsTimeout(t *testing.T) {
	to := NewNetworkTimeout("stream.read", fakeTimeoutErr{})
	require.True(t, IsTimeout(to))
	require.True(t, IsTimeout(context.DeadlineExceeded))

	var ne error = fakeTimeoutErr{}
	require.True(t, IsTimeout(ne))
	require.False(t, IsTimeout(stdErrors.New("plain")))
	require.False(t, IsTimeout(nil))
}

func TestIsTaxonomy(t *testing.T) {
	require.False(t, IsTaxonomy(nil))
	require.False(t, IsTaxonomy(stdErrors.New("plain")))
	require.True(t, IsTaxonomy(New(KindInvalidArgument, "config.validate", nil)))
}

func TestServerFailureClassification(t *testing.T) {
	sf := NewServerFailure("Neo.ClientError.Security.Unauthorized", "bad credentials", KindHandshakeFailed, true)
	var se *ServerFailure
	require.True(t, stdErrors.As(sf, &se))
	require.True(t, se.Fatal)
	require.Equal(t, KindHandshakeFailed, se.Kind())
}

func TestConstructorsWithoutCause(t *testing.T) {
	require.NotEmpty(t, New(KindUnknownError, "op", nil).Error())
	require.NotEmpty(t, NewHandshakeError(KindHandshakeFailed, "op", nil).Error())
	require.NotEmpty(t, NewChunkError(KindChunkEncodingError, "op", nil).Error())
	require.NotEmpty(t, NewNetworkError("op", nil).Error())
}
