package packstream

import (
	"fmt"

	"github.com/go-bolt/boltconn/internal/boerrs"
)

// EncodeStructure renders a tagged structure whose fields are already
// individually encoded (each appended in order), matching PackStream's
// "marker | tag | field_1 ... field_n" layout for tiny structs.
func EncodeStructure(tag byte, fields ...[]byte) []byte {
	if len(fields) > 15 {
		panic("packstream: structure has more than 15 fields")
	}
	buf := []byte{markerTinyStructBase | byte(len(fields)), tag}
	for _, f := range fields {
		buf = append(buf, f...)
	}
	return buf
}

// EncodeHello builds a HELLO message body from the extra/auth map (the
// auth-token translation step feeds this map's "scheme"/"principal"/etc
// entries).
func EncodeHello(fields map[string]any) ([]byte, error) {
	m, err := EncodeMap(fields)
	if err != nil {
		return nil, err
	}
	return EncodeStructure(TagHello, m), nil
}

// EncodeLogon builds a LOGON message body (Bolt 5.1+ split-auth phase).
func EncodeLogon(fields map[string]any) ([]byte, error) {
	m, err := EncodeMap(fields)
	if err != nil {
		return nil, err
	}
	return EncodeStructure(TagLogon, m), nil
}

// EncodeLogoff builds a zero-field LOGOFF message body.
func EncodeLogoff() []byte {
	return EncodeStructure(TagLogoff)
}

// EncodeGoodbye builds a zero-field GOODBYE message body.
func EncodeGoodbye() []byte {
	return EncodeStructure(TagGoodbye)
}

// EncodeReset builds a zero-field RESET message body.
func EncodeReset() []byte {
	return EncodeStructure(TagReset)
}

// EncodeRun builds a RUN message body: query text, parameters, extra.
func EncodeRun(query string, params, extra map[string]any) ([]byte, error) {
	q := appendString(nil, query)
	p, err := EncodeMap(params)
	if err != nil {
		return nil, err
	}
	e, err := EncodeMap(extra)
	if err != nil {
		return nil, err
	}
	return EncodeStructure(TagRun, q, p, e), nil
}

// EncodePull builds a PULL message body (extra map carries "n" and
// optionally "qid").
func EncodePull(extra map[string]any) ([]byte, error) {
	e, err := EncodeMap(extra)
	if err != nil {
		return nil, err
	}
	return EncodeStructure(TagPull, e), nil
}

// DecodeSummary decodes a summary message body's single map field into a
// generic Go map. It does not decode RECORD message bodies, whose field is
// a list rather than a map; DecodeRecord handles those.
func DecodeSummary(body []byte) (tag byte, fields map[string]any, err error) {
	tag, err = PeekTag(body)
	if err != nil {
		return 0, nil, err
	}
	d := &decoder{buf: body[2:]}
	v, err := d.value()
	if err != nil {
		return 0, nil, boerrs.New(boerrs.KindDeserializationError, "packstream.decode_summary", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return 0, nil, boerrs.New(boerrs.KindDeserializationError, "packstream.decode_summary", errNotAMap)
	}
	return tag, m, nil
}

var errNotAMap = errNotAMapType{}

type errNotAMapType struct{}

func (errNotAMapType) Error() string { return "summary structure's first field is not a map" }

// DecodeRecord decodes a RECORD message body's single list field into the
// row of values it carries. Values remain generic `any` — PackStream's
// richer node/relationship/temporal structure types are out of scope here;
// callers that need typed records convert downstream.
func DecodeRecord(body []byte) ([]any, error) {
	tag, err := PeekTag(body)
	if err != nil {
		return nil, err
	}
	if tag != TagRecord {
		return nil, boerrs.New(boerrs.KindDeserializationError, "packstream.decode_record", fmt.Errorf("tag 0x%02x is not RECORD", tag))
	}
	d := &decoder{buf: body[2:]}
	v, err := d.value()
	if err != nil {
		return nil, boerrs.New(boerrs.KindDeserializationError, "packstream.decode_record", err)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, boerrs.New(boerrs.KindDeserializationError, "packstream.decode_record", fmt.Errorf("RECORD's first field is not a list"))
	}
	return list, nil
}
