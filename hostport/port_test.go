package hostport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gobug "go.bug.st/serial"

	"github.com/jangala-dev/tinygo-avrbridge/bridge"
	"github.com/jangala-dev/tinygo-avrbridge/usart"
)

// fakeSerial is an in-memory SerialPort. Bytes pushed with feed are returned by Read;
// Read honours the read timeout by returning 0, nil.
type fakeSerial struct {
	in      chan byte
	closeCh chan struct{}
	once    sync.Once

	mu      sync.Mutex
	out     []byte
	mode    *gobug.Mode
	timeout time.Duration
	modeErr error
	readErr error
}

func newFakeSerial() *fakeSerial {
	return &fakeSerial{in: make(chan byte, 64), closeCh: make(chan struct{})}
}

func (f *fakeSerial) feed(b ...byte) {
	for _, c := range b {
		f.in <- c
	}
}

func (f *fakeSerial) Read(p []byte) (int, error) {
	f.mu.Lock()
	timeout, rerr := f.timeout, f.readErr
	f.mu.Unlock()
	if rerr != nil {
		return 0, rerr
	}
	if timeout <= 0 {
		timeout = time.Hour
	}
	select {
	case b := <-f.in:
		p[0] = b
		return 1, nil
	case <-f.closeCh:
		return 0, errors.New("fake: closed")
	case <-time.After(timeout):
		return 0, nil
	}
}

func (f *fakeSerial) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, p...)
	return len(p), nil
}

func (f *fakeSerial) written() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.out...)
}

func (f *fakeSerial) Close() error {
	f.once.Do(func() { close(f.closeCh) })
	return nil
}

func (f *fakeSerial) SetMode(m *gobug.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.modeErr != nil {
		return f.modeErr
	}
	f.mode = m
	return nil
}

func (f *fakeSerial) SetReadTimeout(d time.Duration) error {
	f.mu.Lock()
	f.timeout = d
	f.mu.Unlock()
	return nil
}

// withFakeOpen makes Open hand out the given fakes by device name.
func withFakeOpen(t *testing.T, fakes map[string]*fakeSerial) {
	t.Helper()
	orig := openPort
	openPort = func(name string, mode *gobug.Mode) (SerialPort, error) {
		f, ok := fakes[name]
		if !ok {
			return nil, errors.New("no such device")
		}
		f.mode = mode
		return f, nil
	}
	t.Cleanup(func() { openPort = orig })
}

func TestModeFor(t *testing.T) {
	cases := []struct {
		in   usart.Config
		want gobug.Mode
	}{
		{usart.DefaultConfig(), gobug.Mode{BaudRate: 9600, DataBits: 8, Parity: gobug.NoParity, StopBits: gobug.OneStopBit}},
		{usart.Config{BaudRate: 19200, DataBits: 7, StopBits: 2, Parity: usart.ParityEven},
			gobug.Mode{BaudRate: 19200, DataBits: 7, Parity: gobug.EvenParity, StopBits: gobug.TwoStopBits}},
		{usart.Config{BaudRate: 1200, DataBits: 5, StopBits: 1, Parity: usart.ParityOdd},
			gobug.Mode{BaudRate: 1200, DataBits: 5, Parity: gobug.OddParity, StopBits: gobug.OneStopBit}},
		// Same fallbacks as the USART: 9 data bits -> 8, 3 stop bits -> 2, bad parity -> none.
		{usart.Config{BaudRate: 4800, DataBits: 9, StopBits: 3, Parity: 5},
			gobug.Mode{BaudRate: 4800, DataBits: 8, Parity: gobug.NoParity, StopBits: gobug.TwoStopBits}},
	}
	for _, c := range cases {
		if got := *ModeFor(c.in); got != c.want {
			t.Errorf("ModeFor(%+v) = %+v; want %+v", c.in, got, c.want)
		}
	}
}

func TestOpen_ConfiguresDevice(t *testing.T) {
	fs := newFakeSerial()
	withFakeOpen(t, map[string]*fakeSerial{"/dev/ttyS9": fs})

	p, err := Open("/dev/ttyS9", usart.Config{BaudRate: 38400, DataBits: 8, StopBits: 1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if fs.mode.BaudRate != 38400 {
		t.Fatalf("opened at %d baud; want 38400", fs.mode.BaudRate)
	}
	if fs.timeout != pollInterval {
		t.Fatalf("read timeout = %v; want %v", fs.timeout, pollInterval)
	}
	if p.Name() != "/dev/ttyS9" || p.Config().BaudRate != 38400 {
		t.Fatalf("port state: %s %+v", p.Name(), p.Config())
	}
}

func TestOpen_Errors(t *testing.T) {
	withFakeOpen(t, map[string]*fakeSerial{})
	if _, err := Open("", usart.DefaultConfig()); err == nil {
		t.Fatal("Open with empty name succeeded")
	}
	if _, err := Open("/dev/missing", usart.DefaultConfig()); err == nil {
		t.Fatal("Open of unknown device succeeded")
	}
}

func TestPort_TransmitReceive(t *testing.T) {
	fs := newFakeSerial()
	p := newPort("fake", fs, usart.DefaultConfig())
	defer p.Close()

	p.Transmit('o')
	p.Transmit('k')
	if got := string(fs.written()); got != "ok" {
		t.Fatalf("written %q; want %q", got, "ok")
	}

	fs.feed('r')
	done := make(chan byte, 1)
	go func() { done <- p.Receive() }()
	select {
	case b := <-done:
		if b != 'r' {
			t.Fatalf("Receive = %q; want 'r'", b)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not return")
	}
}

func TestPort_TryReceive(t *testing.T) {
	fs := newFakeSerial()
	p := newPort("fake", fs, usart.DefaultConfig())
	defer p.Close()

	if _, ok := p.TryReceive(); ok {
		t.Fatal("TryReceive on idle port reported a byte")
	}
	fs.feed('x')
	deadline := time.After(time.Second)
	for {
		if b, ok := p.TryReceive(); ok {
			if b != 'x' {
				t.Fatalf("TryReceive = %q; want 'x'", b)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("byte never became available")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestPort_InitAppliesMode(t *testing.T) {
	fs := newFakeSerial()
	p := newPort("fake", fs, usart.DefaultConfig())
	defer p.Close()

	eff := p.Init(usart.Config{BaudRate: 115200, DataBits: 6, StopBits: 2, Parity: usart.ParityOdd})
	if eff != p.Config() || eff.BaudRate != 115200 {
		t.Fatalf("effective = %+v, Config = %+v", eff, p.Config())
	}
	if fs.mode.DataBits != 6 || fs.mode.Parity != gobug.OddParity {
		t.Fatalf("device mode = %+v", fs.mode)
	}
}

func TestPort_InitFailureIsLatched(t *testing.T) {
	fs := newFakeSerial()
	fs.modeErr = errors.New("ioctl failed")
	p := newPort("fake", fs, usart.DefaultConfig())
	defer p.Close()

	eff := p.Init(usart.Config{BaudRate: 19200, DataBits: 8, StopBits: 1})
	if eff != usart.DefaultConfig() {
		t.Fatalf("effective after failed Init = %+v; want previous config", eff)
	}
	if err := p.Err(); err == nil || !errors.Is(err, fs.modeErr) {
		t.Fatalf("Err = %v; want wrapped mode error", err)
	}
}

func TestPort_CloseUnblocksReceive(t *testing.T) {
	fs := newFakeSerial()
	p := newPort("fake", fs, usart.DefaultConfig())

	done := make(chan byte, 1)
	go func() { done <- p.Receive() }()
	time.Sleep(10 * time.Millisecond)

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	select {
	case b := <-done:
		if b != 0 {
			t.Fatalf("Receive after Close = %q; want 0", b)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive still blocked after Close")
	}
	if p.Err() != nil {
		t.Fatalf("Close recorded an error: %v", p.Err())
	}
	p.Transmit('z')
	if len(fs.written()) != 0 {
		t.Fatal("Transmit after Close wrote to the device")
	}
}

func TestPort_ReadErrorIsLatched(t *testing.T) {
	fs := newFakeSerial()
	fs.readErr = errors.New("device unplugged")
	p := newPort("fake", fs, usart.DefaultConfig())
	defer p.Close()

	if b := p.Receive(); b != 0 {
		t.Fatalf("Receive after read error = %q; want 0", b)
	}
	if !errors.Is(p.Err(), fs.readErr) {
		t.Fatalf("Err = %v; want read error", p.Err())
	}
}

func TestAvailablePorts(t *testing.T) {
	orig := getPortsList
	t.Cleanup(func() { getPortsList = orig })

	getPortsList = func() ([]string, error) { return []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}, nil }
	ports, err := AvailablePorts()
	if err != nil || len(ports) != 2 {
		t.Fatalf("AvailablePorts = %v, %v", ports, err)
	}

	getPortsList = func() ([]string, error) { return nil, errors.New("boom") }
	if _, err := AvailablePorts(); err == nil {
		t.Fatal("AvailablePorts swallowed the error")
	}
}

func TestRelayBetweenHostPorts(t *testing.T) {
	termDev, peerDev := newFakeSerial(), newFakeSerial()
	withFakeOpen(t, map[string]*fakeSerial{"/dev/term": termDev, "/dev/peer": peerDev})

	term, err := Open("/dev/term", usart.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer term.Close()
	peer, err := Open("/dev/peer", usart.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer peer.Close()

	bridge.Start(term, peer, usart.DefaultConfig())
	rel := &bridge.Relay{Echo: term, Peer: peer}

	termDev.feed('A', bridge.CR)
	rel.Step()
	rel.Step()

	want := bridge.Banner + "A\r\n"
	if got := string(termDev.written()); got != want {
		t.Fatalf("terminal got %q; want %q", got, want)
	}
	if got := string(peerDev.written()); got != "A" {
		t.Fatalf("peer got %q; want %q", got, "A")
	}
}

func TestPort_ReceiveContext(t *testing.T) {
	fs := newFakeSerial()
	p := newPort("fake", fs, usart.DefaultConfig())

	fs.feed('q')
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if b, err := p.ReceiveContext(ctx); err != nil || b != 'q' {
		t.Fatalf("ReceiveContext = %q,%v; want 'q',nil", b, err)
	}

	short, stop := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer stop()
	if _, err := p.ReceiveContext(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("idle ReceiveContext = %v; want deadline exceeded", err)
	}

	p.Close()
	if _, err := p.ReceiveContext(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("ReceiveContext after Close = %v; want ErrClosed", err)
	}
}

// openRelay opens a terminal and a peer over fakes and starts a relay between them.
func openRelay(t *testing.T, termDev, peerDev *fakeSerial) (term, peer *Port, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	withFakeOpen(t, map[string]*fakeSerial{"/dev/term": termDev, "/dev/peer": peerDev})
	var err error
	if term, err = Open("/dev/term", usart.DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { term.Close() })
	if peer, err = Open("/dev/peer", usart.DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { peer.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rel := &bridge.Relay{Echo: term, Peer: peer}
	ch := make(chan error, 1)
	go func() { ch <- rel.Run(ctx) }()
	return term, peer, cancel, ch
}

func waitRelay(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
		return nil
	}
}

func TestRelay_TerminalCloseForwardsNothing(t *testing.T) {
	termDev, peerDev := newFakeSerial(), newFakeSerial()
	term, _, _, done := openRelay(t, termDev, peerDev)

	time.Sleep(10 * time.Millisecond)
	term.Close()
	if err := waitRelay(t, done); !errors.Is(err, ErrClosed) {
		t.Fatalf("Run = %v; want ErrClosed", err)
	}
	if got := peerDev.written(); len(got) != 0 {
		t.Fatalf("peer got % x after terminal close", got)
	}
	if got := termDev.written(); len(got) != 0 {
		t.Fatalf("terminal echo got % x after close", got)
	}
}

func TestRelay_ShutdownOrderForwardsNothing(t *testing.T) {
	termDev, peerDev := newFakeSerial(), newFakeSerial()
	term, peer, cancel, done := openRelay(t, termDev, peerDev)

	termDev.feed('k')
	deadline := time.After(time.Second)
	for len(peerDev.written()) == 0 {
		select {
		case <-deadline:
			t.Fatal("byte never relayed")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	term.Close()
	peer.Close()
	if err := waitRelay(t, done); !errors.Is(err, context.Canceled) && !errors.Is(err, ErrClosed) {
		t.Fatalf("Run = %v", err)
	}
	if got := string(peerDev.written()); got != "k" {
		t.Fatalf("peer got %q; want %q", got, "k")
	}
}

func TestRelay_TerminalReadErrorForwardsNothing(t *testing.T) {
	termDev, peerDev := newFakeSerial(), newFakeSerial()
	termDev.readErr = errors.New("device unplugged")
	_, _, _, done := openRelay(t, termDev, peerDev)

	if err := waitRelay(t, done); !errors.Is(err, termDev.readErr) {
		t.Fatalf("Run = %v; want the read error", err)
	}
	time.Sleep(5 * time.Millisecond)
	if got := peerDev.written(); len(got) != 0 {
		t.Fatalf("peer got %d bytes after terminal read error", len(got))
	}
}
