package feed

import (
	"bufio"
	"io"

	"spotter/internal/adsb"
)

// Beast binary message types
const (
	BeastEscape     = 0x1A
	BeastModeAC     = 0x31 // Mode A/C
	BeastModeSShort = 0x32 // Mode S short (56 bits)
	BeastModeSLong  = 0x33 // Mode S long (112 bits)
	BeastStatus     = 0x34 // receiver status
)

// BeastFrame is one message from a Beast binary stream with escaping removed
type BeastFrame struct {
	Type      byte
	Timestamp uint64 // 48-bit 12 MHz receiver clock
	Signal    byte
	Data      []byte
}

// BeastReader splits a Beast stream into frames. Inside a frame a doubled
// 0x1A is a literal 0x1A; a single 0x1A followed by anything else starts
// a new frame, and the truncated one is dropped.
type BeastReader struct {
	r      *bufio.Reader
	synced bool // the escape byte of the next frame is already consumed
}

// NewBeastReader wraps r
func NewBeastReader(r io.Reader) *BeastReader {
	return &BeastReader{r: bufio.NewReaderSize(r, 4096)}
}

// beastPayloadLength returns the data length for a message type, or 0 for
// unknown types
func beastPayloadLength(msgType byte) int {
	switch msgType {
	case BeastModeAC, BeastStatus:
		return 2
	case BeastModeSShort:
		return adsb.ShortFrameBytes
	case BeastModeSLong:
		return adsb.LongFrameBytes
	default:
		return 0
	}
}

// Next returns the next complete frame. Errors come only from the
// underlying reader.
func (b *BeastReader) Next() (*BeastFrame, error) {
	for {
		if !b.synced {
			if err := b.skipToEscape(); err != nil {
				return nil, err
			}
		}
		b.synced = false

		msgType, err := b.r.ReadByte()
		if err != nil {
			return nil, err
		}
		n := beastPayloadLength(msgType)
		if n == 0 {
			// Either an escaped 0x1A outside a frame or an unknown type
			continue
		}

		// 6 timestamp bytes, 1 signal byte, then the payload
		body := make([]byte, 0, 7+n)
		complete := true
		for len(body) < 7+n {
			c, err := b.r.ReadByte()
			if err != nil {
				return nil, err
			}
			if c == BeastEscape {
				next, err := b.r.ReadByte()
				if err != nil {
					return nil, err
				}
				if next != BeastEscape {
					_ = b.r.UnreadByte()
					b.synced = true
					complete = false
					break
				}
			}
			body = append(body, c)
		}
		if !complete {
			continue
		}

		var ts uint64
		for _, c := range body[:6] {
			ts = ts<<8 | uint64(c)
		}

		return &BeastFrame{
			Type:      msgType,
			Timestamp: ts,
			Signal:    body[6],
			Data:      body[7:],
		}, nil
	}
}

func (b *BeastReader) skipToEscape() error {
	for {
		c, err := b.r.ReadByte()
		if err != nil {
			return err
		}
		if c == BeastEscape {
			return nil
		}
	}
}

// EncodeBeast builds an escaped Beast frame, used by tests and the simulator
func EncodeBeast(msgType byte, timestamp uint64, signal byte, data []byte) []byte {
	out := []byte{BeastEscape, msgType}
	appendEscaped := func(c byte) {
		out = append(out, c)
		if c == BeastEscape {
			out = append(out, BeastEscape)
		}
	}

	for shift := 40; shift >= 0; shift -= 8 {
		appendEscaped(byte(timestamp >> uint(shift)))
	}
	appendEscaped(signal)
	for _, c := range data {
		appendEscaped(c)
	}
	return out
}
