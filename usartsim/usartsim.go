// Package usartsim is a behavioural model of an ATmega128 USART for hosted tests and
// the host-side simulator. It implements the register semantics the usart driver
// depends on: UDRE/TXC after a transmit, RXC and the single receive holding register,
// DOR on overrun, FE/UPE on framing and parity mismatch.
//
// Transmission is instantaneous: writing UDR frames the byte with the transmitter's
// current settings and hands it to every attached receiver and tap before UDRE is
// set again.
package usartsim

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/jangala-dev/tinygo-avrbridge/usart"
)

// Frame is one character as it appeared on the wire.
type Frame struct {
	Data    byte
	Line    usart.Config // decoded transmitter settings
	Divisor uint16       // raw UBRR of the transmitter
}

// Peripheral models one USART register block.
type Peripheral struct {
	name string

	ucsra atomic.Uint32
	ucsrb atomic.Uint32
	ucsrc atomic.Uint32
	ubrrh atomic.Uint32
	ubrrl atomic.Uint32
	rxd   atomic.Uint32

	stalled atomic.Bool

	rxMu sync.Mutex // serialises deliveries into the holding register

	mu   sync.RWMutex
	peer *Peripheral
	taps []func(Frame)

	changed chan struct{}
}

// New returns a peripheral in its reset state: UDRE set, 8-bit frames, divisor 0,
// receiver and transmitter disabled.
func New(name string) *Peripheral {
	p := &Peripheral{
		name:    name,
		changed: make(chan struct{}, 1),
	}
	p.ucsra.Store(1 << usart.UDRE)
	p.ucsrc.Store(1<<usart.UCSZ1 | 1<<usart.UCSZ0)
	return p
}

func (p *Peripheral) String() string { return p.name }

// Registers returns the descriptor to hand to usart.New.
func (p *Peripheral) Registers() usart.Registers {
	return usart.Registers{
		UCSRA: statusReg{p},
		UCSRB: plainReg{&p.ucsrb},
		UCSRC: plainReg{&p.ucsrc},
		UBRRH: plainReg{&p.ubrrh},
		UBRRL: plainReg{&p.ubrrl},
		UDR:   dataReg{p},
	}
}

// Changed is a coalesced notification sent whenever UDRE or RXC becomes set. It
// suits usart.NotifyWait.
func (p *Peripheral) Changed() <-chan struct{} { return p.changed }

func (p *Peripheral) notify() {
	select {
	case p.changed <- struct{}{}:
	default:
	}
}

// Status returns UCSRA.
func (p *Peripheral) Status() uint8 { return uint8(p.ucsra.Load()) }

// Control returns UCSRB.
func (p *Peripheral) Control() uint8 { return uint8(p.ucsrb.Load()) }

// Divisor returns the programmed UBRR value.
func (p *Peripheral) Divisor() uint16 {
	return usart.JoinDivisor(uint8(p.ubrrh.Load()), uint8(p.ubrrl.Load()))
}

// Settings decodes the line settings currently programmed into the registers.
func (p *Peripheral) Settings() usart.Config {
	return usart.Decode(uint8(p.ucsrc.Load()), uint8(p.ubrrh.Load()), uint8(p.ubrrl.Load()))
}

func (p *Peripheral) enabled(bit uint8) bool { return p.ucsrb.Load()&(1<<bit) != 0 }

func (p *Peripheral) setStatus(mask uint32) {
	for {
		old := p.ucsra.Load()
		if p.ucsra.CompareAndSwap(old, old|mask) {
			return
		}
	}
}

func (p *Peripheral) clearStatus(mask uint32) {
	for {
		old := p.ucsra.Load()
		if p.ucsra.CompareAndSwap(old, old&^mask) {
			return
		}
	}
}

// Connect wires the transmitter of a to the receiver of b and the transmitter of b
// to the receiver of a.
func Connect(a, b *Peripheral) {
	a.mu.Lock()
	a.peer = b
	a.mu.Unlock()
	b.mu.Lock()
	b.peer = a
	b.mu.Unlock()
}

// Loopback wires the transmitter of p to its own receiver.
func Loopback(p *Peripheral) {
	p.mu.Lock()
	p.peer = p
	p.mu.Unlock()
}

// Tap registers fn to observe every frame p transmits. fn runs on the transmitting
// goroutine and must not block.
func (p *Peripheral) Tap(fn func(Frame)) {
	p.mu.Lock()
	p.taps = append(p.taps, fn)
	p.mu.Unlock()
}

// Stall freezes UDRE clear, modelling a transmitter that never becomes ready.
func (p *Peripheral) Stall(on bool) {
	p.stalled.Store(on)
	if on {
		p.clearStatus(1 << usart.UDRE)
		return
	}
	p.setStatus(1<<usart.UDRE | 1<<usart.TXC)
	p.notify()
}

func (p *Peripheral) transmit(v uint8) {
	if !p.enabled(usart.TXEN) || p.stalled.Load() {
		return
	}
	p.clearStatus(1<<usart.UDRE | 1<<usart.TXC)

	line := p.Settings()
	f := Frame{Data: v & dataMask(line.DataBits), Line: line, Divisor: p.Divisor()}

	p.mu.RLock()
	peer, taps := p.peer, p.taps
	p.mu.RUnlock()
	for _, tap := range taps {
		tap(f)
	}
	if peer != nil {
		peer.receive(f)
	}

	if !p.stalled.Load() {
		p.setStatus(1<<usart.UDRE | 1<<usart.TXC)
		p.notify()
	}
}

// receive latches f into the holding register. It reports false when the frame was
// lost: receiver disabled, or the previous byte not yet read (DOR).
func (p *Peripheral) receive(f Frame) bool {
	p.rxMu.Lock()
	defer p.rxMu.Unlock()

	if !p.enabled(usart.RXEN) {
		return false
	}
	if p.Status()&(1<<usart.RXC) != 0 {
		p.setStatus(1 << usart.DOR)
		return false
	}

	own := p.Settings()
	var errs uint32
	// The receiver samples only the first stop bit, so a stop-bit mismatch is not
	// detectable.
	if f.Divisor != p.Divisor() || f.Line.DataBits != own.DataBits ||
		(f.Line.Parity == usart.ParityNone) != (own.Parity == usart.ParityNone) {
		errs |= 1 << usart.FE
	} else if f.Line.Parity != own.Parity {
		errs |= 1 << usart.UPE
	}

	p.rxd.Store(uint32(f.Data & dataMask(own.DataBits)))
	p.clearStatus(1<<usart.FE | 1<<usart.UPE | 1<<usart.DOR)
	p.setStatus(errs | 1<<usart.RXC)
	p.notify()
	return true
}

func (p *Peripheral) read() uint8 {
	v := uint8(p.rxd.Load())
	p.clearStatus(1<<usart.RXC | 1<<usart.DOR)
	return v
}

// Inject delivers b as if a correctly framed character arrived on the line. It
// reports false if the byte was lost.
func (p *Peripheral) Inject(b byte) bool {
	return p.receive(Frame{Data: b, Line: p.Settings(), Divisor: p.Divisor()})
}

// Feed waits until the holding register is free, then injects b. Only one goroutine
// may feed a peripheral at a time.
func (p *Peripheral) Feed(ctx context.Context, b byte) error {
	for {
		if p.Status()&(1<<usart.RXC) == 0 && p.Inject(b) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Microsecond):
		}
	}
}

func dataMask(bits uint8) uint8 {
	if bits >= 8 {
		return 0xFF
	}
	return uint8(1)<<bits - 1
}

type plainReg struct{ v *atomic.Uint32 }

func (r plainReg) Get() uint8  { return uint8(r.v.Load()) }
func (r plainReg) Set(v uint8) { r.v.Store(uint32(v)) }

// statusReg is UCSRA: only U2X and MPCM are writable, and writing one to TXC
// clears it.
type statusReg struct{ p *Peripheral }

func (r statusReg) Get() uint8 { return r.p.Status() }

func (r statusReg) Set(v uint8) {
	const writable = 1<<usart.U2X | 1<<usart.MPCM
	for {
		old := r.p.ucsra.Load()
		next := old&^writable | uint32(v)&writable
		if v&(1<<usart.TXC) != 0 {
			next &^= 1 << usart.TXC
		}
		if r.p.ucsra.CompareAndSwap(old, next) {
			return
		}
	}
}

// dataReg is UDR: writes go to the transmitter, reads come from the receiver.
type dataReg struct{ p *Peripheral }

func (r dataReg) Get() uint8  { return r.p.read() }
func (r dataReg) Set(v uint8) { r.p.transmit(v) }
