package bridge

import "context"

// Duplex services both directions from a single polling loop: bytes from the
// terminal go through the Relay policy, bytes from the peer are echoed to the
// terminal unchanged. Neither direction blocks the other.
type Duplex struct {
	Relay

	TerminalRx TryReceiver
	PeerRx     TryReceiver
}

// Pump moves at most one byte in each direction and reports whether anything moved.
func (d *Duplex) Pump() bool {
	moved := false
	if b, ok := d.TerminalRx.TryReceive(); ok {
		d.Handle(b)
		moved = true
	}
	if b, ok := d.PeerRx.TryReceive(); ok {
		d.Echo.Transmit(b)
		moved = true
	}
	return moved
}

// Run pumps until ctx is done. idle is called after every pass that moved nothing;
// pass nil to spin.
func (d *Duplex) Run(ctx context.Context, idle func()) error {
	done := ctx.Done()
	for {
		select {
		case <-done:
			return ctx.Err()
		default:
		}
		if !d.Pump() && idle != nil {
			idle()
		}
	}
}
