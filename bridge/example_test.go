package bridge_test

import (
	"fmt"

	"github.com/jangala-dev/tinygo-avrbridge/bridge"
	"github.com/jangala-dev/tinygo-avrbridge/usart"
	"github.com/jangala-dev/tinygo-avrbridge/usartsim"
)

func ExampleRelay() {
	termHW, peerHW := usartsim.New("usart1"), usartsim.New("usart0")
	echo := new(usartsim.Capture).Attach(termHW)
	wire := new(usartsim.Capture).Attach(peerHW)

	term, peer := usart.New(termHW.Registers()), usart.New(peerHW.Registers())
	bridge.Start(term, peer, usart.DefaultConfig())
	echo.Reset()

	r := bridge.Relay{Echo: term, Peer: peer}
	for _, b := range []byte("ok\r") {
		termHW.Inject(b)
		r.Step()
	}
	fmt.Printf("echo %q\n", echo.Bytes())
	fmt.Printf("peer %q\n", wire.Bytes())
	// Output:
	// echo "ok\r\n"
	// peer "ok"
}

func ExampleStart() {
	termHW, peerHW := usartsim.New("usart1"), usartsim.New("usart0")
	echo := new(usartsim.Capture).Attach(termHW)

	eff := bridge.Start(usart.New(termHW.Registers()), usart.New(peerHW.Registers()),
		usart.Config{BaudRate: 19200, DataBits: 7, StopBits: 2, Parity: usart.ParityEven})
	fmt.Println(eff.BaudRate, eff.DataBits, eff.StopBits, eff.Parity)
	fmt.Printf("%q\n", echo.Bytes())
	// Output:
	// 19200 7 2 even
	// "\r\nRS232/BT Test Reflector.\r\n"
}
