// Package bridge relays bytes typed on a terminal line to a peer line, echoing them
// back to the terminal. A carriage return is echoed as CR LF so a terminal that does
// not add its own line feed still starts a new line.
//
// The package only depends on the small interfaces below, so the same relay runs on
// the microcontroller (usart.Port), against the simulator, or between two host ttys.
package bridge

import (
	"context"

	"github.com/jangala-dev/tinygo-avrbridge/usart"
)

const (
	CR = 0x0D
	LF = 0x0A
)

// Banner is sent to the terminal once both lines are up.
const Banner = "\r\nRS232/BT Test Reflector.\r\n"

// Transmitter sends one byte, blocking until the line accepts it.
type Transmitter interface {
	Transmit(b byte)
}

// Receiver returns the next byte, blocking until one arrives.
type Receiver interface {
	Receive() byte
}

// Port is a line that can both send and receive.
type Port interface {
	Transmitter
	Receiver
}

// TryReceiver returns a pending byte without blocking.
type TryReceiver interface {
	TryReceive() (byte, bool)
}

// ContextReceiver returns the next byte, or an error when ctx is done or the line can
// deliver no more bytes.
type ContextReceiver interface {
	ReceiveContext(ctx context.Context) (byte, error)
}

// Initializer is a line that must be configured before use.
type Initializer interface {
	Init(cfg usart.Config) usart.Config
}

// SendString transmits s one byte at a time.
func SendString(t Transmitter, s string) {
	for i := 0; i < len(s); i++ {
		t.Transmit(s[i])
	}
}

// Start configures the terminal line, then the peer line, with the same settings
// and greets the terminal with Banner. It returns the effective settings of the
// terminal line.
func Start(terminal, peer Initializer, cfg usart.Config) usart.Config {
	eff := terminal.Init(cfg)
	peer.Init(cfg)
	if t, ok := terminal.(Transmitter); ok {
		SendString(t, Banner)
	}
	return eff
}

// Relay forwards bytes received on Echo to Peer and echoes them back on Echo.
type Relay struct {
	Echo Port
	Peer Transmitter

	// ForwardCR also sends a received CR to the peer. The reference firmware only
	// echoes it.
	ForwardCR bool
}

// Handle applies the relay policy to one byte from the terminal.
func (r *Relay) Handle(b byte) {
	if b == CR {
		r.Echo.Transmit(CR)
		r.Echo.Transmit(LF)
		if r.ForwardCR {
			r.Peer.Transmit(CR)
		}
		return
	}
	r.Echo.Transmit(b)
	r.Peer.Transmit(b)
}

// Step waits for one byte from the terminal and handles it.
func (r *Relay) Step() {
	r.Handle(r.Echo.Receive())
}

// Run steps until ctx is done. When Echo is a ContextReceiver the wait for each byte
// is bounded by ctx and a receive error ends Run without handling anything. Otherwise
// ctx is only checked between bytes and a Receive that never returns keeps Run blocked.
func (r *Relay) Run(ctx context.Context) error {
	cr, bounded := r.Echo.(ContextReceiver)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !bounded {
			r.Step()
			continue
		}
		b, err := cr.ReceiveContext(ctx)
		if err != nil {
			return err
		}
		r.Handle(b)
	}
}
