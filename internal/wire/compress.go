package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// MaxEventPayload is the fixed slot size for events/trading (§6).
const MaxEventPayload = 4096

// EncodeCompressedEventMessage zstd-compresses an already-framed event
// message when it would not fit in the bus's fixed 4096-byte slot. Small
// payloads are returned unmodified with a one-byte tag so the decoder knows
// which path to take.
const (
	tagRaw  byte = 0
	tagZstd byte = 1
)

// EncodeCompressedEventMessage wraps EncodeEventMessage's output with a
// one-byte framing tag, compressing with zstd only if the raw frame would
// overflow the bus slot.
func EncodeCompressedEventMessage(raw []byte) ([]byte, error) {
	if len(raw)+1 <= MaxEventPayload {
		return append([]byte{tagRaw}, raw...), nil
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("wire: new zstd writer: %w", err)
	}
	defer enc.Close()

	compressed := enc.EncodeAll(raw, nil)
	out := append([]byte{tagZstd}, compressed...)
	if len(out) > MaxEventPayload {
		return nil, fmt.Errorf("wire: event payload %d bytes exceeds bus slot even compressed", len(out))
	}
	return out, nil
}

// DecodeCompressedEventMessage reverses EncodeCompressedEventMessage.
func DecodeCompressedEventMessage(framed []byte) ([]byte, error) {
	if len(framed) == 0 {
		return nil, newDecodeError("event_message", "empty payload")
	}
	tag, body := framed[0], framed[1:]

	switch tag {
	case tagRaw:
		return body, nil
	case tagZstd:
		dec, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("wire: new zstd reader: %w", err)
		}
		defer dec.Close()
		out, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("wire: zstd decompress: %w", err)
		}
		return out, nil
	default:
		return nil, newDecodeError("event_message", "invalid compression tag")
	}
}
