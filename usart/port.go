package usart

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// noCopy makes go vet flag accidental copies of a Port.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Port is one USART. It owns its register block for the lifetime of the program.
//
// State: a Port starts uninitialized; Init moves it to ready, and later calls to Init
// reconfigure it. Transmit and Receive are only defined once ready.
type Port struct {
	_ noCopy

	regs  Registers
	wait  Waiter
	ready bool
	cfg   Config
	image Image

	stats Stats
}

// Option configures a Port at construction.
type Option func(*Port)

// WithWaiter replaces the BusyWait strategy used by the blocking primitives.
func WithWaiter(w Waiter) Option {
	return func(p *Port) {
		if w != nil {
			p.wait = w
		}
	}
}

// New returns an uninitialized Port over regs.
func New(regs Registers, opts ...Option) *Port {
	p := &Port{regs: regs, wait: BusyWait}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Init programs the divisor and frame format and enables the receiver and
// transmitter. It returns the configuration actually applied.
//
// The enables are left set across a re-init so a byte already sitting in the receive
// holding register survives. Re-init while a byte is still shifting out changes the
// rate under it; callers reconfigure an idle line.
func (p *Port) Init(cfg Config) Config {
	img := Encode(cfg)

	p.regs.UBRRH.Set(img.UBRRH)
	p.regs.UBRRL.Set(img.UBRRL)
	clearBits(p.regs.UCSRB, 1<<UCSZ2)
	p.regs.UCSRC.Set(img.UCSRC)

	// Last: nothing moves on the line before this.
	setBits(p.regs.UCSRB, 1<<RXEN|1<<TXEN)

	p.image = img
	p.cfg = img.Effective
	p.ready = true
	p.dbgInit()
	return img.Effective
}

// Ready reports whether Init has been called.
func (p *Port) Ready() bool { return p.ready }

// Config returns the effective configuration of the last Init.
func (p *Port) Config() Config { return p.cfg }

// Image returns the register image written by the last Init.
func (p *Port) Image() Image { return p.image }

func (p *Port) txEmpty() bool { return hasBit(p.regs.UCSRA, UDRE) }

func (p *Port) rxComplete() bool { return hasBit(p.regs.UCSRA, RXC) }

// Transmit waits for the transmit holding register to empty, then writes b. It
// blocks forever if the hardware never becomes ready. A waiter error is treated as a
// spurious wake and the wait starts again.
func (p *Port) Transmit(b byte) {
	p.assertReady()
	if !p.txEmpty() {
		p.dbgTxWait()
	}
	for p.wait.Wait(context.Background(), p.txEmpty) != nil {
	}
	p.regs.UDR.Set(b)
	p.dbgTx()
}

// Receive waits for a complete byte and returns it. It blocks forever if nothing
// arrives.
func (p *Port) Receive() byte {
	p.assertReady()
	if !p.rxComplete() {
		p.dbgRxWait()
	}
	for p.wait.Wait(context.Background(), p.rxComplete) != nil {
	}
	p.dbgRx()
	return p.regs.UDR.Get()
}

// TryReceive returns the pending byte if one has arrived. It never blocks.
func (p *Port) TryReceive() (byte, bool) {
	if !p.ready || !p.rxComplete() {
		return 0, false
	}
	p.dbgRx()
	return p.regs.UDR.Get(), true
}

// TransmitContext is Transmit with a bound: it gives up when ctx is done. A deadline
// yields an error matching both ErrTimeout and context.DeadlineExceeded.
func (p *Port) TransmitContext(ctx context.Context, b byte) error {
	if !p.ready {
		return ErrNotInitialized
	}
	if err := p.wait.Wait(ctx, p.txEmpty); err != nil {
		return p.waitErr("transmit", err)
	}
	p.regs.UDR.Set(b)
	p.dbgTx()
	return nil
}

// ReceiveContext is Receive with a bound, see TransmitContext.
func (p *Port) ReceiveContext(ctx context.Context) (byte, error) {
	if !p.ready {
		return 0, ErrNotInitialized
	}
	if err := p.wait.Wait(ctx, p.rxComplete); err != nil {
		return 0, p.waitErr("receive", err)
	}
	p.dbgRx()
	return p.regs.UDR.Get(), nil
}

// TransmitTimeout is TransmitContext with a fixed timeout.
func (p *Port) TransmitTimeout(b byte, d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return p.TransmitContext(ctx, b)
}

// ReceiveTimeout is ReceiveContext with a fixed timeout.
func (p *Port) ReceiveTimeout(d time.Duration) (byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return p.ReceiveContext(ctx)
}

func (p *Port) waitErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		p.dbgTimeout()
		return fmt.Errorf("%w: %s: %w", ErrTimeout, op, err)
	}
	return err
}

// WriteString transmits s byte by byte.
func (p *Port) WriteString(s string) {
	for i := 0; i < len(s); i++ {
		p.Transmit(s[i])
	}
}

// Write implements io.Writer on top of Transmit. It never fails.
func (p *Port) Write(b []byte) (int, error) {
	for _, c := range b {
		p.Transmit(c)
	}
	return len(b), nil
}

// WriteByte implements io.ByteWriter.
func (p *Port) WriteByte(c byte) error {
	p.Transmit(c)
	return nil
}

// ReadByte implements io.ByteReader. It blocks like Receive.
func (p *Port) ReadByte() (byte, error) {
	return p.Receive(), nil
}
