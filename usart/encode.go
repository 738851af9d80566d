package usart

// Image is the register image Init writes for a Config, together with the
// configuration the hardware will actually run after fallbacks.
type Image struct {
	UBRRH     uint8
	UBRRL     uint8
	UCSRC     uint8
	Effective Config
}

// Divisor returns the UBRR value for baud in normal (U2X=0) asynchronous mode:
// OscillatorHz/(16*baud) - 1 with integer truncation. Rates above OscillatorHz/16
// wrap, exactly as the 16-bit hardware register would.
func Divisor(baud uint32) uint16 {
	return uint16(OscillatorHz/(16*baud) - 1)
}

// BaudFromDivisor is the inverse of Divisor: the rate the hardware generates for d.
func BaudFromDivisor(d uint16) uint32 {
	return OscillatorHz / (16 * (uint32(d) + 1))
}

// SplitDivisor splits d into the UBRRH and UBRRL bytes.
func SplitDivisor(d uint16) (hi, lo uint8) {
	return uint8(d >> 8), uint8(d)
}

// JoinDivisor recombines the UBRRH and UBRRL bytes.
func JoinDivisor(hi, lo uint8) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}

// EncodeDataBits returns the UCSZ1:0 bits of UCSRC for n data bits. UCSZ2 (in UCSRB)
// is always zero. Values other than 5, 6 or 7 select 8 bits.
func EncodeDataBits(n uint8) (ucsrc uint8, effective uint8) {
	switch n {
	case 5:
		return 0, 5
	case 6:
		return 1 << UCSZ0, 6
	case 7:
		return 1 << UCSZ1, 7
	}
	return 1<<UCSZ1 | 1<<UCSZ0, 8
}

// EncodeParity returns the UPM1:0 bits of UCSRC. Unknown values select no parity.
func EncodeParity(p Parity) (ucsrc uint8, effective Parity) {
	switch p {
	case ParityOdd:
		return 1<<UPM1 | 1<<UPM0, ParityOdd
	case ParityEven:
		return 1 << UPM1, ParityEven
	}
	return 0, ParityNone
}

// EncodeStopBits returns the USBS bit of UCSRC. One selects a single stop bit, any
// other value selects two.
func EncodeStopBits(n uint8) (ucsrc uint8, effective uint8) {
	if n == 1 {
		return 0, 1
	}
	return 1 << USBS, 2
}

// Encode computes the full register image for cfg. A zero BaudRate cannot be divided
// into and is replaced by the 9600 baud of DefaultConfig.
func Encode(cfg Config) Image {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultConfig().BaudRate
	}
	hi, lo := SplitDivisor(Divisor(baud))

	db, dataBits := EncodeDataBits(cfg.DataBits)
	pm, parity := EncodeParity(cfg.Parity)
	sb, stopBits := EncodeStopBits(cfg.StopBits)

	return Image{
		UBRRH: hi,
		UBRRL: lo,
		UCSRC: db | pm | sb,
		Effective: Config{
			BaudRate: baud,
			DataBits: dataBits,
			StopBits: stopBits,
			Parity:   parity,
		},
	}
}

// Decode reads a line configuration back out of register contents. The baud rate is
// the one the divisor generates, which differs from the requested rate by the
// truncation error.
func Decode(ucsrc, ubrrh, ubrrl uint8) Config {
	cfg := Config{
		BaudRate: BaudFromDivisor(JoinDivisor(ubrrh, ubrrl)),
		DataBits: 5 + (ucsrc>>UCSZ0)&0x3,
		StopBits: 1,
	}
	if ucsrc&(1<<USBS) != 0 {
		cfg.StopBits = 2
	}
	switch ucsrc & (1<<UPM1 | 1<<UPM0) {
	case 1<<UPM1 | 1<<UPM0:
		cfg.Parity = ParityOdd
	case 1 << UPM1:
		cfg.Parity = ParityEven
	}
	return cfg
}
