//go:build usartdebug

package usart

import "go.uber.org/atomic"

// Stats holds counters since the last reset.
type Stats struct {
	Inits    atomic.Uint32 // calls to Init
	TxBytes  atomic.Uint32 // bytes written to UDR
	RxBytes  atomic.Uint32 // bytes read from UDR
	TxWaits  atomic.Uint32 // Transmit calls that found UDRE clear
	RxWaits  atomic.Uint32 // Receive calls that found RXC clear
	Timeouts atomic.Uint32 // bounded waits that expired
}

// StatsSnapshot is a plain copy of Stats.
type StatsSnapshot struct {
	Inits, TxBytes, RxBytes, TxWaits, RxWaits, Timeouts uint32
}

func (p *Port) DebugReset() {
	p.stats.Inits.Store(0)
	p.stats.TxBytes.Store(0)
	p.stats.RxBytes.Store(0)
	p.stats.TxWaits.Store(0)
	p.stats.RxWaits.Store(0)
	p.stats.Timeouts.Store(0)
}

func (p *Port) DebugStats() StatsSnapshot {
	return StatsSnapshot{
		Inits:    p.stats.Inits.Load(),
		TxBytes:  p.stats.TxBytes.Load(),
		RxBytes:  p.stats.RxBytes.Load(),
		TxWaits:  p.stats.TxWaits.Load(),
		RxWaits:  p.stats.RxWaits.Load(),
		Timeouts: p.stats.Timeouts.Load(),
	}
}

// Regs is a snapshot of the control and status registers. UDR is left out because
// reading it consumes the received byte.
type Regs struct {
	UCSRA, UCSRB, UCSRC, UBRRH, UBRRL uint8
}

func (p *Port) DebugRegs() Regs {
	return Regs{
		UCSRA: p.regs.UCSRA.Get(),
		UCSRB: p.regs.UCSRB.Get(),
		UCSRC: p.regs.UCSRC.Get(),
		UBRRH: p.regs.UBRRH.Get(),
		UBRRL: p.regs.UBRRL.Get(),
	}
}
