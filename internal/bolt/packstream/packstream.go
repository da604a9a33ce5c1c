// Package packstream implements the narrow slice of PackStream (Bolt's
// structure serialization format) that the connection layer needs to drive
// the protocol's own messages: HELLO, LOGON, LOGOFF, GOODBYE, RESET, RUN and
// PULL, the SUCCESS/FAILURE/IGNORED summary responses, and RECORD rows. It
// is deliberately not a general-purpose PackStream encoder/decoder — query
// parameters and record values are limited to nil, bool, integers, strings,
// byte arrays, and tiny maps and lists, with no node/relationship/temporal
// structures — but these messages still need a real byte-for-byte wire
// encoding to exercise the handshake/chunk/conn layers end to end, so this
// package supplies one in the compact tiny-map/tiny-string tagged-byte style
// PackStream defines.
package packstream

import (
	"fmt"

	"github.com/go-bolt/boltconn/internal/boerrs"
)

// Structure tag bytes for the control messages this package encodes.
const (
	TagHello  byte = 0x01
	TagLogon  byte = 0x6A
	TagLogoff byte = 0x6B
	TagGoodbye byte = 0x02
	TagReset  byte = 0x0F
	TagRun    byte = 0x10
	TagPull   byte = 0x3F

	TagSuccess byte = 0x70
	TagRecord  byte = 0x71
	TagIgnored byte = 0x7E
	TagFailure byte = 0x7F
)

// markerTinyStructBase is the high nibble marking a PackStream structure
// with 0-15 fields in its compact ("tiny") encoding.
const markerTinyStructBase = 0xB0

// PeekTag inspects a decoded message body and returns its structure tag
// without consuming it, so the connection layer can dispatch on message
// kind before fully decoding.
func PeekTag(body []byte) (byte, error) {
	if len(body) < 2 {
		return 0, boerrs.NewChunkError(boerrs.KindDeserializationError, "packstream.peek_tag", fmt.Errorf("message body too short: %d bytes", len(body)))
	}
	marker := body[0]
	if marker&0xF0 != markerTinyStructBase {
		return 0, boerrs.NewChunkError(boerrs.KindInvalidMessageFormat, "packstream.peek_tag", fmt.Errorf("marker 0x%02x is not a tiny struct", marker))
	}
	return body[1], nil
}

// EncodeMap writes a map[string]any as a PackStream map: a size marker
// followed by (tiny-string key, value) pairs. Supports the value types the
// control messages actually carry: string, bool, int64/int, []byte, and
// nested map[string]any.
func EncodeMap(m map[string]any) ([]byte, error) {
	var buf []byte
	buf, err := appendMap(buf, m)
	if err != nil {
		return nil, boerrs.New(boerrs.KindSerializationError, "packstream.encode_map", err)
	}
	return buf, nil
}

func appendMap(buf []byte, m map[string]any) ([]byte, error) {
	n := len(m)
	if n > 15 {
		return nil, fmt.Errorf("map has %d entries, tiny-map encoding supports at most 15", n)
	}
	buf = append(buf, 0xA0|byte(n))
	for k, v := range m {
		buf = appendString(buf, k)
		var err error
		buf, err = appendValue(buf, v)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendValue(buf []byte, v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return append(buf, 0xC0), nil
	case bool:
		if t {
			return append(buf, 0xC3), nil
		}
		return append(buf, 0xC2), nil
	case string:
		return appendString(buf, t), nil
	case int:
		return appendInt(buf, int64(t)), nil
	case int64:
		return appendInt(buf, t), nil
	case []byte:
		return appendBytes(buf, t), nil
	case map[string]any:
		return appendMap(buf, t)
	case []any:
		return appendList(buf, t)
	default:
		return nil, fmt.Errorf("packstream: unsupported value type %T", v)
	}
}

func appendList(buf []byte, items []any) ([]byte, error) {
	if len(items) > 15 {
		return nil, fmt.Errorf("list has %d entries, tiny-list encoding supports at most 15", len(items))
	}
	buf = append(buf, 0x90|byte(len(items)))
	for _, it := range items {
		var err error
		buf, err = appendValue(buf, it)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendString(buf []byte, s string) []byte {
	b := []byte(s)
	switch {
	case len(b) <= 15:
		buf = append(buf, 0x80|byte(len(b)))
	case len(b) <= 0xFF:
		buf = append(buf, 0xD0, byte(len(b)))
	default:
		buf = append(buf, 0xD1, byte(len(b)>>8), byte(len(b)))
	}
	return append(buf, b...)
}

func appendBytes(buf, b []byte) []byte {
	switch {
	case len(b) <= 0xFF:
		buf = append(buf, 0xCC, byte(len(b)))
	default:
		buf = append(buf, 0xCD, byte(len(b)>>8), byte(len(b)))
	}
	return append(buf, b...)
}

func appendInt(buf []byte, v int64) []byte {
	switch {
	case v >= -16 && v <= 127:
		return append(buf, byte(v))
	case v >= -128 && v <= 127:
		return append(buf, 0xC8, byte(v))
	case v >= -32768 && v <= 32767:
		return append(buf, 0xC9, byte(v>>8), byte(v))
	default:
		return append(buf, 0xCA,
			byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
}
