//go:build usartdebug

package usart

// assertReady traps use of a port before Init.
func (p *Port) assertReady() {
	if !p.ready {
		panic(ErrNotInitialized)
	}
}

func (p *Port) dbgInit()    { p.stats.Inits.Inc() }
func (p *Port) dbgTx()      { p.stats.TxBytes.Inc() }
func (p *Port) dbgRx()      { p.stats.RxBytes.Inc() }
func (p *Port) dbgTxWait()  { p.stats.TxWaits.Inc() }
func (p *Port) dbgRxWait()  { p.stats.RxWaits.Inc() }
func (p *Port) dbgTimeout() { p.stats.Timeouts.Inc() }
