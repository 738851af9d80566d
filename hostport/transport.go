package hostport

import (
	"time"

	gobug "go.bug.st/serial"

	"github.com/jangala-dev/tinygo-avrbridge/usart"
)

// SerialPort abstracts the subset of go.bug.st/serial.Port used by this package.
type SerialPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetMode(mode *gobug.Mode) error
	SetReadTimeout(d time.Duration) error
}

// allow tests to override external dependencies
var (
	openPort     = func(name string, mode *gobug.Mode) (SerialPort, error) { return gobug.Open(name, mode) }
	getPortsList = gobug.GetPortsList
)

// AvailablePorts lists the serial devices the OS reports.
func AvailablePorts() ([]string, error) {
	ports, err := getPortsList()
	if err != nil {
		return nil, err
	}
	return ports, nil
}

// ModeFor maps a line configuration onto a host serial mode. The same fallbacks as
// on the microcontroller apply, so both ends of a bridge agree on the frame.
func ModeFor(cfg usart.Config) *gobug.Mode {
	eff := usart.Encode(cfg).Effective

	mode := &gobug.Mode{
		BaudRate: int(eff.BaudRate),
		DataBits: int(eff.DataBits),
		Parity:   gobug.NoParity,
		StopBits: gobug.OneStopBit,
	}
	switch eff.Parity {
	case usart.ParityOdd:
		mode.Parity = gobug.OddParity
	case usart.ParityEven:
		mode.Parity = gobug.EvenParity
	}
	if eff.StopBits == 2 {
		mode.StopBits = gobug.TwoStopBits
	}
	return mode
}
