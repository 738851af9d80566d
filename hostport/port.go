// Package hostport runs the bridge between two serial devices on a host computer.
// A Port gives a go.bug.st/serial device the same single-byte Transmit/Receive shape
// as a microcontroller USART, so bridge.Relay drives either without change.
package hostport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/jangala-dev/tinygo-avrbridge/usart"
)

var (
	ErrClosed = errors.New("hostport: port closed")
)

// pollInterval bounds each blocking read so Close is noticed promptly.
const pollInterval = 100 * time.Millisecond

// Port is one host serial device. Received bytes pass through a one-byte holding
// slot, mirroring the USART receive register.
type Port struct {
	name string
	sp   SerialPort
	log  zerolog.Logger

	cfgMu sync.Mutex
	cfg   usart.Config

	rx      chan byte
	closeCh chan struct{}
	doneCh  chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
	err       atomic.Error
}

// Option configures a Port.
type Option func(*Port)

// WithLogger sets the logger; the default discards.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Port) { p.log = l }
}

// Open opens name with cfg and starts the receive loop.
func Open(name string, cfg usart.Config, opts ...Option) (*Port, error) {
	if name == "" {
		return nil, fmt.Errorf("hostport: missing port name")
	}
	sp, err := openPort(name, ModeFor(cfg))
	if err != nil {
		return nil, fmt.Errorf("hostport: open %s: %w", name, err)
	}
	if err := sp.SetReadTimeout(pollInterval); err != nil {
		_ = sp.Close()
		return nil, fmt.Errorf("hostport: %s: set read timeout: %w", name, err)
	}
	return newPort(name, sp, cfg, opts...), nil
}

// newPort wraps an already open SerialPort.
func newPort(name string, sp SerialPort, cfg usart.Config, opts ...Option) *Port {
	p := &Port{
		name:    name,
		sp:      sp,
		log:     zerolog.Nop(),
		cfg:     usart.Encode(cfg).Effective,
		rx:      make(chan byte, 1),
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With().Str("port", name).Logger()
	go p.readerLoop()
	return p
}

// Name returns the device path.
func (p *Port) Name() string { return p.name }

// Init applies cfg to the device and returns the effective configuration. A failure
// is latched in Err and logged; like the USART it has no error return.
func (p *Port) Init(cfg usart.Config) usart.Config {
	eff := usart.Encode(cfg).Effective
	if err := p.sp.SetMode(ModeFor(eff)); err != nil {
		p.fail(fmt.Errorf("set mode: %w", err))
		return p.Config()
	}
	p.cfgMu.Lock()
	p.cfg = eff
	p.cfgMu.Unlock()
	p.log.Debug().
		Uint32("baud", eff.BaudRate).
		Uint8("data_bits", eff.DataBits).
		Uint8("stop_bits", eff.StopBits).
		Stringer("parity", eff.Parity).
		Msg("line configured")
	return eff
}

// Config returns the effective configuration.
func (p *Port) Config() usart.Config {
	p.cfgMu.Lock()
	defer p.cfgMu.Unlock()
	return p.cfg
}

// Transmit writes b. Write errors are latched in Err; after Close it is a no-op.
func (p *Port) Transmit(b byte) {
	if p.closed.Load() {
		return
	}
	buf := [1]byte{b}
	for {
		n, err := p.sp.Write(buf[:])
		if err != nil {
			p.fail(fmt.Errorf("write: %w", err))
			return
		}
		if n == 1 {
			return
		}
	}
}

// Receive blocks until a byte arrives. After Close or a read error it returns 0, which
// is indistinguishable from a received NUL; loops that must stop use ReceiveContext.
func (p *Port) Receive() byte {
	b, ok := <-p.rx
	if !ok {
		return 0
	}
	return b
}

// ReceiveContext blocks until a byte arrives or ctx is done. Once the receive loop
// has stopped it returns the latched read error, or ErrClosed after Close.
func (p *Port) ReceiveContext(ctx context.Context) (byte, error) {
	select {
	case b, ok := <-p.rx:
		if !ok {
			if err := p.Err(); err != nil {
				return 0, err
			}
			return 0, ErrClosed
		}
		return b, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// TryReceive returns the pending byte, if any, without blocking.
func (p *Port) TryReceive() (byte, bool) {
	select {
	case b, ok := <-p.rx:
		return b, ok
	default:
		return 0, false
	}
}

// Err returns the first I/O error, or nil.
func (p *Port) Err() error { return p.err.Load() }

func (p *Port) fail(err error) {
	if p.err.CompareAndSwap(nil, err) {
		p.log.Error().Err(err).Msg("serial i/o failed")
	}
}

// Close stops the receive loop and closes the device. It is safe to call more than
// once.
func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.closeCh)
		err = p.sp.Close()
		<-p.doneCh
	})
	return err
}

func (p *Port) readerLoop() {
	defer close(p.doneCh)
	defer close(p.rx)

	var buf [1]byte
	for {
		select {
		case <-p.closeCh:
			return
		default:
		}

		n, err := p.sp.Read(buf[:])
		if err != nil {
			if !p.closed.Load() {
				p.fail(fmt.Errorf("read: %w", err))
			}
			return
		}
		if n == 0 {
			continue // read timeout
		}

		select {
		case p.rx <- buf[0]:
		case <-p.closeCh:
			return
		}
	}
}
