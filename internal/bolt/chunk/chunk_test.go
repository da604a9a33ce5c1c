package chunk

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	// A zero-length message is deliberately excluded: the wire format makes
	// it indistinguishable from a bare NOOP terminator, so Encode(nil)+Decode
	// is not expected to round-trip to an empty message — see
	// TestDecodeSkipsLeadingNoop, which covers that case directly.
	cases := [][]byte{
		[]byte("hello"),
		bytes.Repeat([]byte{0xAB}, MaxChunkPayload),
		bytes.Repeat([]byte{0xCD}, MaxChunkPayload+17),
		bytes.Repeat([]byte{0xEF}, 2*MaxChunkPayload),
	}
	for _, msg := range cases {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, msg))
		got, err := Decode(&buf)
		require.NoError(t, err)
		require.Equal(t, msg, got)
	}
}

func TestEncodeProducesExpectedWireBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, []byte{0xB1, 0x01, 0x91, 0x01}))
	require.Equal(t, []byte{0x00, 0x04, 0xB1, 0x01, 0x91, 0x01, 0x00, 0x00}, buf.Bytes())
}

func TestDecodeNoopThenMessageFromWireBytes(t *testing.T) {
	// A bare terminator (NOOP) precedes the real message; the NOOP must be
	// invisible to the caller.
	r := bytes.NewReader([]byte{0x00, 0x00, 0x00, 0x03, 0xB1, 0x70, 0xA0, 0x00, 0x00})
	got, err := Decode(r)
	require.NoError(t, err)
	require.Equal(t, []byte{0xB1, 0x70, 0xA0}, got)
}

func TestDecodeSkipsLeadingNoop(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, nil)) // pure NOOP frame: just the terminator
	require.NoError(t, Encode(&buf, []byte("payload")))

	got, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)
}

func TestDecodeSurfacesShortRead(t *testing.T) {
	r := bytes.NewReader([]byte{0x00}) // truncated header
	_, err := Decode(r)
	require.Error(t, err)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFrameSizeMatchesEncodedLength(t *testing.T) {
	for _, n := range []int{0, 1, MaxChunkPayload, MaxChunkPayload + 1, 3 * MaxChunkPayload} {
		msg := bytes.Repeat([]byte{0x01}, n)
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, msg))
		require.Equal(t, frameSize(n), buf.Len())
	}
}
