package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jangala-dev/tinygo-avrbridge/bridge"
	"github.com/jangala-dev/tinygo-avrbridge/hostport"
	"github.com/jangala-dev/tinygo-avrbridge/usart"
	"github.com/jangala-dev/tinygo-avrbridge/usartsim"
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run the relay against simulated USARTs",
	Long: "Feed standard input into a simulated USART1 as terminal input. The echo is written to " +
		"standard output and the bytes the simulated USART0 put on the peer line are reported at the end.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := hostport.NewLogger(cfg.Log, os.Stderr)

		peer, err := simulate(cmd.InOrStdin(), cmd.OutOrStdout(), cfg, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\npeer <- %q (%d bytes)\n", peer, len(peer))
		return nil
	},
}

// simulate runs the firmware flow on two simulated USARTs: USART1 is the terminal,
// USART0 the peer. Each input byte is latched into USART1's receiver and relayed
// before the next one arrives. It returns everything sent on the peer line.
func simulate(in io.Reader, echo io.Writer, cfg hostport.Config, log zerolog.Logger) ([]byte, error) {
	termHW, peerHW := usartsim.New("usart1"), usartsim.New("usart0")

	var werr error
	termHW.Tap(func(f usartsim.Frame) {
		if werr == nil {
			_, werr = echo.Write([]byte{f.Data})
		}
	})
	wire := new(usartsim.Capture).Attach(peerHW)
	peerHW.Tap(func(f usartsim.Frame) {
		log.Debug().
			Str("port", peerHW.String()).
			Uint8("data", f.Data).
			Uint16("ubrr", f.Divisor).
			Msg("peer frame")
	})

	term := usart.New(termHW.Registers())
	peer := usart.New(peerHW.Registers())
	eff := bridge.Start(term, peer, cfg.Line.UsartConfig())
	img := term.Image()
	log.Debug().
		Uint32("baud", eff.BaudRate).
		Uint8("ubrrh", img.UBRRH).
		Uint8("ubrrl", img.UBRRL).
		Uint8("ucsrc", img.UCSRC).
		Msg("simulated usarts configured")

	rel := bridge.Relay{Echo: term, Peer: peer, ForwardCR: cfg.ForwardCR}
	r := bufio.NewReader(in)
	for werr == nil {
		b, err := r.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return wire.Bytes(), fmt.Errorf("hostbridge: read input: %w", err)
		}
		if !termHW.Inject(b) {
			return wire.Bytes(), fmt.Errorf("hostbridge: %s dropped input byte %#02x", termHW, b)
		}
		rel.Step()
	}
	if werr != nil {
		return wire.Bytes(), fmt.Errorf("hostbridge: write echo: %w", werr)
	}
	return wire.Bytes(), nil
}
