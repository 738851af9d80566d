//go:build !usartdebug

package usart

func (p *Port) assertReady() {}
func (p *Port) dbgInit()     {}
func (p *Port) dbgTx()       {}
func (p *Port) dbgRx()       {}
func (p *Port) dbgTxWait()   {}
func (p *Port) dbgRxWait()   {}
func (p *Port) dbgTimeout()  {}
