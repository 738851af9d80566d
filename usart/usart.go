// usart/usart.go

// Package usart drives the two USART peripherals of the ATmega128A with polled,
// single-byte blocking I/O. Init programs the baud-rate divisor and frame format and
// then enables the receiver and transmitter. Transmit blocks until the transmit
// holding register is empty; Receive blocks until a byte has arrived. Neither has a
// timeout; the *Context variants add one for hosted use and tests.
//
// Line options are never rejected. Values outside the supported tables fall back to
// a default and the substitution is reported through the effective Config returned
// by Init.
package usart

import "errors"

// OscillatorHz is the system clock of the target board (ReadyAVR, 7.3728 MHz crystal).
const OscillatorHz = 7372800

var (
	// ErrNotInitialized is returned (or raised by the debug assertion) when a port is
	// used before Init.
	ErrNotInitialized = errors.New("usart: port not initialized")
	// ErrTimeout marks a bounded wait that expired before the hardware became ready.
	ErrTimeout = errors.New("usart: timeout")
)

// Parity selects the parity mode of a frame.
type Parity uint8

const (
	// ParityNone sends no parity bit.
	ParityNone Parity = iota
	// ParityOdd makes the count of one bits (data plus parity) odd.
	ParityOdd
	// ParityEven makes the count of one bits (data plus parity) even.
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	}
	return "invalid"
}

// Config holds the line parameters applied by Init.
//
// BaudRate is expected in 1200..115200. DataBits is 5..8 (anything else means 8),
// StopBits is 1 or 2 (anything other than 1 means 2) and unknown Parity values mean
// ParityNone.
type Config struct {
	BaudRate uint32
	DataBits uint8
	StopBits uint8
	Parity   Parity
}

// DefaultConfig returns 9600 baud, 8 data bits, 1 stop bit, no parity.
func DefaultConfig() Config {
	return Config{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: ParityNone}
}

// FrameBits is the number of bit times one character occupies on the wire:
// start bit, data bits, optional parity bit and stop bits.
func (c Config) FrameBits() int {
	n := 1 + int(c.DataBits) + int(c.StopBits)
	if c.Parity != ParityNone {
		n++
	}
	return n
}
