// usart/usart_host.go

//go:build !avr

package usart

// Host shim: inert registers so target code builds and unit tests can drive a port
// without a simulator. UDRE always reads set; Inject loads the receive holding
// register and sets RXC.

type memReg struct{ v uint8 }

func (r *memReg) Get() uint8  { return r.v }
func (r *memReg) Set(v uint8) { r.v = v }

// hostUDR keeps the two directions of the data register apart, as the hardware does.
type hostUDR struct {
	status *memReg
	rx     uint8
	tx     []byte
}

func (r *hostUDR) Get() uint8 {
	r.status.v &^= 1 << RXC
	return r.rx
}

func (r *hostUDR) Set(v uint8) { r.tx = append(r.tx, v) }

// HostRegisters is a Registers block backed by memory.
type HostRegisters struct {
	Registers
	status *memReg
	udr    *hostUDR
}

// NewHostRegisters returns a memory register block in its reset state.
func NewHostRegisters() *HostRegisters {
	status := &memReg{v: 1 << UDRE}
	udr := &hostUDR{status: status}
	return &HostRegisters{
		Registers: Registers{
			UCSRA: status,
			UCSRB: &memReg{},
			UCSRC: &memReg{v: 1<<UCSZ1 | 1<<UCSZ0},
			UBRRH: &memReg{},
			UBRRL: &memReg{},
			UDR:   udr,
		},
		status: status,
		udr:    udr,
	}
}

// Inject places b in the receive holding register. If the previous byte has not been
// read yet, b is lost and DOR is set.
func (h *HostRegisters) Inject(b byte) {
	if h.status.v&(1<<RXC) != 0 {
		h.status.v |= 1 << DOR
		return
	}
	h.status.v &^= 1 << DOR
	h.udr.rx = b
	h.status.v |= 1 << RXC
}

// Sent returns and clears the bytes written to UDR.
func (h *HostRegisters) Sent() []byte {
	out := h.udr.tx
	h.udr.tx = nil
	return out
}

var (
	host0 = NewHostRegisters()
	host1 = NewHostRegisters()

	// Public instances to mirror the target build.
	USART0 = New(host0.Registers)
	USART1 = New(host1.Registers)
)

// HostRegs returns the memory registers behind USART0 (n == 0) or USART1.
func HostRegs(n int) *HostRegisters {
	if n == 0 {
		return host0
	}
	return host1
}
