package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/joshuasello/mycelium-iot/errors"
)

// DefaultMaxFrameSize bounds a single framed payload. Control messages are
// small; anything near this limit is a corrupt or hostile stream.
const DefaultMaxFrameSize = 1 << 20 // 1 MiB

// frameHeaderSize is the length prefix: 4-byte big-endian payload length
const frameHeaderSize = 4

// WriteFrame writes one length-prefixed payload to w
func WriteFrame(w io.Writer, payload []byte, maxSize int) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	if len(payload) > maxSize {
		return errors.WrapInvalid(
			fmt.Errorf("payload of %d bytes exceeds limit %d: %w",
				len(payload), maxSize, errors.ErrProtocol),
			"wire", "WriteFrame", "size check")
	}

	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return errors.WrapTransient(err, "wire", "WriteFrame", "header write")
	}
	if _, err := w.Write(payload); err != nil {
		return errors.WrapTransient(err, "wire", "WriteFrame", "payload write")
	}
	return nil
}

// ReadFrame reads one length-prefixed payload from r. Oversized frames are
// protocol errors; the caller should fail the connection, because the
// stream position is no longer trustworthy.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}

	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.WrapTransient(err, "wire", "ReadFrame", "header read")
	}

	// Compare in uint64: converting the untrusted length to int would
	// wrap negative on 32-bit builds and let a hostile header through to
	// make, panicking the process.
	length := binary.BigEndian.Uint32(header[:])
	if uint64(length) > uint64(maxSize) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("frame of %d bytes exceeds limit %d: %w",
				length, maxSize, errors.ErrProtocol),
			"wire", "ReadFrame", "size check")
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.WrapTransient(err, "wire", "ReadFrame", "payload read")
	}
	return payload, nil
}
