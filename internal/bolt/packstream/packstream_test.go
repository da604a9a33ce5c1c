package packstream

import (
	"testing"

	"github.com/go-bolt/boltconn/internal/boerrs"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeMapRoundTrip(t *testing.T) {
	in := map[string]any{
		"scheme":    "basic",
		"principal": "neo4j",
		"count":     int64(42),
		"ok":        true,
		"missing":   nil,
	}
	encoded, err := EncodeMap(in)
	require.NoError(t, err)

	d := &decoder{buf: encoded}
	out, err := d.value()
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestPeekTagHello(t *testing.T) {
	body, err := EncodeHello(map[string]any{"user_agent": "boltconn/1.0"})
	require.NoError(t, err)
	tag, err := PeekTag(body)
	require.NoError(t, err)
	require.Equal(t, TagHello, tag)
}

func TestDecodeSummarySuccess(t *testing.T) {
	m, err := EncodeMap(map[string]any{"server": "Neo4j/5.20.0", "connection_id": "bolt-17"})
	require.NoError(t, err)
	body := EncodeStructure(TagSuccess, m)

	tag, fields, err := DecodeSummary(body)
	require.NoError(t, err)
	require.Equal(t, TagSuccess, tag)
	require.Equal(t, "Neo4j/5.20.0", fields["server"])
	require.Equal(t, "bolt-17", fields["connection_id"])
}

func TestDecodeSummaryFailure(t *testing.T) {
	m, err := EncodeMap(map[string]any{"code": "Neo.ClientError.Security.Unauthorized", "message": "bad credentials"})
	require.NoError(t, err)
	body := EncodeStructure(TagFailure, m)

	tag, fields, err := DecodeSummary(body)
	require.NoError(t, err)
	require.Equal(t, TagFailure, tag)
	require.Equal(t, "Neo.ClientError.Security.Unauthorized", fields["code"])
}

func TestEncodeRunStructure(t *testing.T) {
	body, err := EncodeRun("RETURN 1", map[string]any{"x": int64(1)}, map[string]any{})
	require.NoError(t, err)
	tag, err := PeekTag(body)
	require.NoError(t, err)
	require.Equal(t, TagRun, tag)
}

func TestDecodeRecordValues(t *testing.T) {
	list := []any{int64(1), "neo4j", true, nil}
	body := EncodeStructure(TagRecord, mustEncodeList(t, list))

	values, err := DecodeRecord(body)
	require.NoError(t, err)
	require.Equal(t, list, values)
}

func TestDecodeRecordRejectsWrongTag(t *testing.T) {
	m, err := EncodeMap(map[string]any{"server": "Neo4j/5.20.0"})
	require.NoError(t, err)
	body := EncodeStructure(TagSuccess, m)

	_, err = DecodeRecord(body)
	require.Error(t, err)
}

func mustEncodeList(t *testing.T, items []any) []byte {
	t.Helper()
	buf, err := appendList(nil, items)
	require.NoError(t, err)
	return buf
}

func TestDecodeTruncatedValuesReturnError(t *testing.T) {
	// Each case claims more content than the buffer holds; the decoder must
	// report the truncation, never index past the end.
	cases := map[string][]byte{
		"empty buffer":            {},
		"int8 missing byte":       {0xC8},
		"int16 missing both":      {0xC9},
		"int16 missing one":       {0xC9, 0x01},
		"int32 truncated":         {0xCA, 0x00, 0x00},
		"tiny string short":       {0x85, 'a', 'b'},
		"string8 missing length":  {0xD0},
		"string8 short body":      {0xD0, 0x04, 'a'},
		"string16 partial length": {0xD1, 0x00},
		"bytes8 short body":       {0xCC, 0x02, 0x01},
		"bytes16 missing length":  {0xCD, 0x00},
		"list missing element":    {0x92, 0x01},
		"map missing value":       {0xA1, 0x81, 'k'},
	}
	for name, buf := range cases {
		d := &decoder{buf: buf}
		_, err := d.value()
		require.Error(t, err, name)
	}
}

func TestDecodeSummaryTruncatedIsDeserializationError(t *testing.T) {
	m, err := EncodeMap(map[string]any{"server": "Neo4j/5.20.0"})
	require.NoError(t, err)
	body := EncodeStructure(TagSuccess, m)

	_, _, err = DecodeSummary(body[:len(body)-3])
	require.True(t, boerrs.IsKind(err, boerrs.KindDeserializationError))
}

func TestDecodeRecordTruncatedIsDeserializationError(t *testing.T) {
	list := []any{"neo4j", int64(1)}
	body := EncodeStructure(TagRecord, mustEncodeList(t, list))

	_, err := DecodeRecord(body[:len(body)-2])
	require.True(t, boerrs.IsKind(err, boerrs.KindDeserializationError))
}

func TestEncodeMapRejectsOversizedMap(t *testing.T) {
	big := make(map[string]any, 16)
	for i := 0; i < 16; i++ {
		big[string(rune('a'+i))] = int64(i)
	}
	_, err := EncodeMap(big)
	require.Error(t, err)
}
