// Package chunk implements the Bolt chunking codec: framing an
// arbitrary-length message as a sequence of 2-byte-length-prefixed chunks
// terminated by a zero-length chunk, and reassembling an inbound byte
// stream back into whole messages. A zero-length chunk that arrives with no
// prior data accumulated is a NOOP and is skipped rather than surfaced as
// an empty message, mirroring a dechunker/rechunker split.
package chunk

import (
	"fmt"
	"io"

	"github.com/go-bolt/boltconn/internal/boerrs"
	"github.com/go-bolt/boltconn/internal/bufpool"
	"github.com/go-bolt/boltconn/internal/bolt/wire"
)

// MaxChunkPayload is the largest legal chunk body: the length prefix is a
// 16-bit unsigned integer, so a chunk cannot carry more than 65535 bytes.
const MaxChunkPayload = 0xFFFF

// headerSize is the 2-byte big-endian length prefix preceding each chunk body.
const headerSize = 2

// Encode fragments msg into a sequence of chunks, each at most
// MaxChunkPayload bytes, terminated by the zero-length marker, and writes
// the whole frame in a single Write call so a concurrent reader never
// observes a partially written message.
func Encode(w io.Writer, msg []byte) error {
	out := bufpool.Get(frameSize(len(msg)))
	defer bufpool.Put(out)
	return encodeInto(out, w, msg)
}

// frameSize computes the exact byte length of the chunked wire
// representation of a message of the given length: one header per
// MaxChunkPayload-sized piece (plus a final short piece if not an exact
// multiple), plus the 2-byte zero-length terminator.
func frameSize(msgLen int) int {
	if msgLen == 0 {
		return headerSize
	}
	fullChunks := msgLen / MaxChunkPayload
	rem := msgLen % MaxChunkPayload
	n := fullChunks * (headerSize + MaxChunkPayload)
	if rem > 0 {
		n += headerSize + rem
	}
	return n + headerSize
}

func encodeInto(buf []byte, w io.Writer, msg []byte) error {
	pos := 0
	off := 0
	for pos < len(msg) {
		n := len(msg) - pos
		if n > MaxChunkPayload {
			n = MaxChunkPayload
		}
		wire.PutUint16(buf[off:off+2], uint16(n))
		off += 2
		copy(buf[off:off+n], msg[pos:pos+n])
		off += n
		pos += n
	}
	wire.PutUint16(buf[off:off+2], 0)
	off += 2

	if _, err := w.Write(buf[:off]); err != nil {
		return boerrs.NewNetworkError("chunk.encode.write", err)
	}
	return nil
}

// Decode reassembles the next complete message from r, blocking until the
// zero-length terminator is seen. Leading zero-length chunks (NOOPs) are
// consumed and ignored rather than returned as empty messages, matching the
// NOOP keep-alive semantics.
func Decode(r io.Reader) ([]byte, error) {
	var msg []byte
	header := make([]byte, headerSize)

	for {
		if _, err := io.ReadFull(r, header); err != nil {
			return nil, boerrs.NewNetworkError("chunk.decode.read_header", err)
		}
		n := wire.Uint16(header)
		if int(n) > MaxChunkPayload {
			// Unreachable for a well-formed u16 header; reaching it means the
			// header bytes themselves were corrupted in transit.
			return nil, boerrs.NewChunkError(boerrs.KindChunkTooLarge, "chunk.decode", fmt.Errorf("chunk header %d exceeds the %d-byte ceiling", n, MaxChunkPayload))
		}
		if n == 0 {
			if len(msg) == 0 {
				continue // NOOP: no data accumulated yet, keep waiting
			}
			return msg, nil
		}
		body := bufpool.Get(int(n))
		if _, err := io.ReadFull(r, body); err != nil {
			bufpool.Put(body)
			return nil, boerrs.NewNetworkError("chunk.decode.read_body", err)
		}
		msg = append(msg, body...)
		bufpool.Put(body)
	}
}
