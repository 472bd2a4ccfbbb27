package feed

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
)

// Per-line skip reasons
var (
	ErrEmptyLine = errors.New("empty line")
	ErrBadHex    = errors.New("invalid hex payload")
	ErrIdleFrame = errors.New("idle frame")
)

// ParseAVR recovers the frame bytes from one AVR text line such as
// "*8D4840D6202CC371C32CE0576098;\n". The leading marker byte and the
// ";" plus line terminator are stripped before hex decoding.
func ParseAVR(line []byte) ([]byte, error) {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) <= 1 {
		return nil, ErrEmptyLine
	}

	payload := bytes.TrimSuffix(line[1:], []byte(";"))
	if len(payload) == 0 {
		return nil, ErrEmptyLine
	}

	data := make([]byte, hex.DecodedLen(len(payload)))
	if _, err := hex.Decode(data, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHex, err)
	}

	if isIdle(data) {
		return nil, ErrIdleFrame
	}
	return data, nil
}

// isIdle reports whether every byte is zero, the feed's no-signal marker
func isIdle(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
