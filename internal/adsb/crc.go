package adsb

// ADS-B CRC-24 polynomial constant (Mode S standard)
const MODES_GENERATOR_POLY = 0xfff409

// Pre-computed CRC table
var crcTable [256]uint32

// syndromeTable maps the checksum of a single flipped bit in a long frame
// to the index of that bit
var syndromeTable map[uint32]int

func init() {
	for i := 0; i < 256; i++ {
		c := uint32(i) << 16
		for j := 0; j < 8; j++ {
			if c&0x800000 != 0 {
				c = (c << 1) ^ MODES_GENERATOR_POLY
			} else {
				c = c << 1
			}
		}
		crcTable[i] = c & 0x00ffffff
	}

	initSyndromeTable()
}

// initSyndromeTable builds the single-bit error table (like dump1090)
func initSyndromeTable() {
	syndromeTable = make(map[uint32]int, LongFrameBytes*8)
	for i := 0; i < LongFrameBytes*8; i++ {
		var msg [LongFrameBytes]byte
		msg[i/8] = 0x80 >> (i % 8)
		syndromeTable[Checksum(msg[:])] = i
	}
}

// Checksum runs the Mode S CRC-24 over data. Over a whole frame with
// correct parity bits the result is zero; over the first 88 bits of a long
// frame it yields the parity to append.
func Checksum(data []byte) uint32 {
	var rem uint32
	for _, b := range data {
		rem = (rem << 8) ^ crcTable[uint32(b)^((rem&0xff0000)>>16)]
		rem = rem & 0xffffff
	}
	return rem
}

// checkParity validates a long extended squitter frame, repairing a single
// flipped bit when the syndrome identifies one. It returns the number of
// corrected bits, or false when the frame is unrecoverable.
func checkParity(frame *Frame) (int, bool) {
	crc := Checksum(frame[:])
	if crc == 0 {
		return 0, true
	}

	bit, ok := syndromeTable[crc]
	if !ok {
		return 0, false
	}

	// Bits 1-5 hold the downlink format and are never corrected
	if bit < 5 {
		return 0, false
	}

	frame[bit/8] ^= 0x80 >> (bit % 8)
	return 1, true
}
