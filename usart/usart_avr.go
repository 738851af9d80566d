// usart/usart_avr.go

//go:build avr

package usart

import (
	"runtime/volatile"
	"unsafe"
)

func reg(addr uintptr) *volatile.Register8 {
	return (*volatile.Register8)(unsafe.Pointer(addr))
}

// USART on the ATmega128A. USART0 carries the peer link, USART1 the terminal.
var (
	USART0 = New(Registers{
		UCSRA: reg(UCSR0AAddr),
		UCSRB: reg(UCSR0BAddr),
		UCSRC: reg(UCSR0CAddr),
		UBRRH: reg(UBRR0HAddr),
		UBRRL: reg(UBRR0LAddr),
		UDR:   reg(UDR0Addr),
	})

	USART1 = New(Registers{
		UCSRA: reg(UCSR1AAddr),
		UCSRB: reg(UCSR1BAddr),
		UCSRC: reg(UCSR1CAddr),
		UBRRH: reg(UBRR1HAddr),
		UBRRL: reg(UBRR1LAddr),
		UDR:   reg(UDR1Addr),
	})
)
