//go:build !usartdebug

package usart

type Stats struct{}

type StatsSnapshot struct{}

func (p *Port) DebugReset()               {}
func (p *Port) DebugStats() StatsSnapshot { return StatsSnapshot{} }

type Regs struct{}

func (p *Port) DebugRegs() Regs { return Regs{} }
