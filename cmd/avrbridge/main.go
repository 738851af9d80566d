//go:build avr

// Command avrbridge is the ATmega128 terminal reflector: USART1 faces the terminal,
// USART0 the peer (a Bluetooth module in the reference board). Every byte typed on the
// terminal is echoed and forwarded; a carriage return is echoed as CR LF.
package main

import (
	"github.com/jangala-dev/tinygo-avrbridge/bridge"
	"github.com/jangala-dev/tinygo-avrbridge/usart"
)

func main() {
	bridge.Start(usart.USART1, usart.USART0, usart.DefaultConfig())

	relay := bridge.Relay{Echo: usart.USART1, Peer: usart.USART0}
	for {
		relay.Step()
	}
}
