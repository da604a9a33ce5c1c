package wire

import (
	"fmt"

	"github.com/go-bolt/boltconn/internal/boerrs"
)

// Magic is the fixed 4-byte preamble that opens every Bolt handshake
// request, identical across all protocol versions.
const Magic uint32 = 0x6060B017

// MaxProposals is the number of version slots a handshake request carries.
const MaxProposals = 4

// HandshakeRequestSize is the fixed wire size of a handshake request:
// 4 magic bytes + 4 slots * 4 bytes each.
const HandshakeRequestSize = 4 + MaxProposals*4

// PreferredVersions is the concrete version list this client proposes, in
// order of preference, when a caller doesn't supply its own.
// Protocol versions below 3.0 are never proposed.
var PreferredVersions = []Version{
	{Major: 5, Minor: 4},
	{Major: 5, Minor: 3},
	{Major: 5, Minor: 2},
	{Major: 5, Minor: 1},
	{Major: 5, Minor: 0},
	{Major: 4, Minor: 4},
	{Major: 4, Minor: 3},
}

// BuildHandshakeRequest renders up to MaxProposals versions into a 20-byte
// handshake request: the magic preamble followed by one 4-byte slot per
// proposal (in order), zero-padded to MaxProposals slots. Fails with
// InvalidArgument when proposals is empty.
func BuildHandshakeRequest(proposals []Version) ([]byte, error) {
	if len(proposals) == 0 {
		return nil, boerrs.NewHandshakeError(boerrs.KindInvalidArgument, "wire.build_handshake_request", fmt.Errorf("version proposal list is empty"))
	}
	buf := make([]byte, HandshakeRequestSize)
	PutUint32(buf[0:4], Magic)
	for i := 0; i < MaxProposals; i++ {
		slot := buf[4+i*4 : 4+i*4+4]
		if i < len(proposals) {
			EncodeSlot(slot, proposals[i])
		}
	}
	return buf, nil
}

// ParseHandshakeReply decodes the server's 4-byte reply into the single
// negotiated version. A reply of all-zero bytes means the server rejected
// every proposal (HandshakeNoCommonVersion); any other slot that fails to
// decode as a plain 0x0000MMNN value is surfaced as
// UnsupportedProtocolVersion rather than a generic deserialization failure,
// deliberately conflating the two failure modes on the strict side.
func ParseHandshakeReply(reply []byte) (Version, error) {
	if len(reply) != 4 {
		return Version{}, boerrs.NewHandshakeError(boerrs.KindDeserializationError, "wire.parse_handshake_reply", fmt.Errorf("reply is %d bytes, want 4", len(reply)))
	}
	v, err := DecodeSlot(reply)
	if err != nil {
		return Version{}, boerrs.NewHandshakeError(boerrs.KindUnsupportedProtocolVer, "wire.parse_handshake_reply", err)
	}
	if v.Major == 0 && v.Minor == 0 {
		return Version{}, boerrs.NewHandshakeError(boerrs.KindHandshakeNoCommonVersion, "wire.parse_handshake_reply", fmt.Errorf("server proposed no common version"))
	}
	return v, nil
}

// VerifyProposed returns UnsupportedProtocolVersion unless v appears
// verbatim in proposals — the caller must confirm the server's reply is one
// it actually offered, not merely well-formed.
func VerifyProposed(v Version, proposals []Version) error {
	for _, p := range proposals {
		if p == v {
			return nil
		}
	}
	return boerrs.NewHandshakeError(boerrs.KindUnsupportedProtocolVer, "wire.verify_proposed", fmt.Errorf("server negotiated %s, which was not in the proposal list", v))
}
