package usart

// Register8 is one 8-bit peripheral register. runtime/volatile.Register8 satisfies it
// on target; usartsim provides a behavioural model on host.
type Register8 interface {
	Get() uint8
	Set(value uint8)
}

// Registers describes the register block of one USART. It is handed to New once;
// after that only the Port reads or writes it.
type Registers struct {
	UCSRA Register8 // status
	UCSRB Register8 // control: enables and UCSZ2
	UCSRC Register8 // frame format
	UBRRH Register8 // divisor, high byte
	UBRRL Register8 // divisor, low byte
	UDR   Register8 // transmit/receive holding register
}

// UCSRnA bit positions.
const (
	MPCM = 0
	U2X  = 1
	UPE  = 2
	DOR  = 3
	FE   = 4
	UDRE = 5
	TXC  = 6
	RXC  = 7
)

// UCSRnB bit positions.
const (
	TXB8  = 0
	RXB8  = 1
	UCSZ2 = 2
	TXEN  = 3
	RXEN  = 4
	UDRIE = 5
	TXCIE = 6
	RXCIE = 7
)

// UCSRnC bit positions. Bit 7 is reserved on the ATmega128.
const (
	UCPOL = 0
	UCSZ0 = 1
	UCSZ1 = 2
	USBS  = 3
	UPM0  = 4
	UPM1  = 5
	UMSEL = 6
)

// Data-space addresses of the two USART blocks.
const (
	UDR0Addr   = 0x2C
	UCSR0AAddr = 0x2B
	UCSR0BAddr = 0x2A
	UBRR0LAddr = 0x29
	UBRR0HAddr = 0x90
	UCSR0CAddr = 0x95

	UDR1Addr   = 0x9C
	UCSR1AAddr = 0x9B
	UCSR1BAddr = 0x9A
	UBRR1LAddr = 0x99
	UBRR1HAddr = 0x98
	UCSR1CAddr = 0x9D
)

func hasBit(r Register8, bit uint8) bool { return r.Get()&(1<<bit) != 0 }

func setBits(r Register8, mask uint8) { r.Set(r.Get() | mask) }

func clearBits(r Register8, mask uint8) { r.Set(r.Get() &^ mask) }
