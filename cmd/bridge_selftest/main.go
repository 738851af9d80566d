//go:build avr

package main

import (
	"github.com/jangala-dev/tinygo-avrbridge/bridge"
	"github.com/jangala-dev/tinygo-avrbridge/usart"
)

// Wiring required:
//   USART0 TXD0 (PE1) -> USART1 RXD1 (PD2)
//   USART1 TXD1 (PD3) -> USART0 RXD0 (PE0)

// spinBudget bounds every receive poll. At 7.3728 MHz it is well above one character
// time at 2400 baud.
const spinBudget = 200000

func main() {
	println("usart cross-wired self-test starting (USART0<->USART1)")

	u0 := usart.USART0
	u1 := usart.USART1

	pass, fail := 0, 0
	run := func(name string, f func() string) {
		println("")
		println("[Test]", name)
		if msg := f(); msg == "" {
			println("  PASS")
			pass++
		} else {
			println("  FAIL:", msg)
			fail++
		}
	}

	line := usart.DefaultConfig()
	u0.Init(line)
	u1.Init(line)
	drain(u0)
	drain(u1)

	run("U0 -> U1 all byte values 9600 8N1", func() string {
		return sweep(u0, u1, 0xFF)
	})

	run("U1 -> U0 all byte values 9600 8N1", func() string {
		return sweep(u1, u0, 0xFF)
	})

	run("relay one byte", func() string {
		drain(u0)
		drain(u1)
		r := bridge.Relay{Echo: u1, Peer: u0}
		r.Handle('A')
		// The echo leaves U1 and lands on U0; the forwarded copy leaves U0 and lands on U1.
		if b, ok := recv(u0); !ok || b != 'A' {
			return "echo not seen"
		}
		if b, ok := recv(u1); !ok || b != 'A' {
			return "forward not seen"
		}
		return ""
	})

	line = usart.Config{BaudRate: 19200, DataBits: 7, StopBits: 2, Parity: usart.ParityEven}
	run("re-init 19200 7E2", func() string {
		e0 := u0.Init(line)
		e1 := u1.Init(line)
		if e0 != line || e1 != line {
			return "effective config differs"
		}
		img := u0.Image()
		if img.UBRRH != 0 || img.UBRRL != 23 || img.UCSRC != 0x2C {
			return "register image"
		}
		drain(u0)
		drain(u1)
		if msg := sweep(u0, u1, 0x7F); msg != "" {
			return msg
		}
		return sweep(u1, u0, 0x7F)
	})

	println("")
	println("Summary")
	println("  passed =", pass)
	println("  failed =", fail)
	if fail == 0 {
		println("PASS")
	} else {
		println("FAIL")
	}
	for {
	}
}

// sweep sends every value 0..last from tx and checks each arrives on rx before the
// next is sent.
func sweep(tx, rx *usart.Port, last int) string {
	for v := 0; v <= last; v++ {
		tx.Transmit(byte(v))
		got, ok := recv(rx)
		if !ok {
			return "timeout at " + hex(byte(v))
		}
		if got != byte(v) {
			return "sent " + hex(byte(v)) + " got " + hex(got)
		}
	}
	return ""
}

func recv(p *usart.Port) (byte, bool) {
	for i := 0; i < spinBudget; i++ {
		if b, ok := p.TryReceive(); ok {
			return b, true
		}
	}
	return 0, false
}

func drain(p *usart.Port) {
	for {
		if _, ok := recv(p); !ok {
			return
		}
	}
}

func hex(b byte) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{'0', 'x', digits[b>>4], digits[b&0x0F]})
}
