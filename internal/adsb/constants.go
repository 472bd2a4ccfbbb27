package adsb

// ADS-B 6-bit character set used for callsign encoding
const ADSBCharset = "@ABCDEFGHIJKLMNOPQRSTUVWXYZ[\\]^_ !\"#$%&'()*+,-./0123456789:;<=>?"

// Frame sizes in bytes
const (
	ShortFrameBytes = 7  // 56 bits
	LongFrameBytes  = 14 // 112 bits
)

// Downlink formats carrying extended squitters
const (
	DFExtendedSquitter = 17 // ADS-B from a Mode S transponder
	DFNonTransponder   = 18 // TIS-B / ADS-R / non-transponder devices
)

// CPR decoding constants
const (
	CPR_LAT_MAX = 131072 // 2^17
	CPR_LON_MAX = 131072 // 2^17
)

// CPRPairWindow is the maximum age difference between an even and an odd
// frame for them to be combined into a global position.
const CPRPairWindow = 10 // seconds

// metersToFeet converts GNSS heights to feet
const metersToFeet = 3.28084
