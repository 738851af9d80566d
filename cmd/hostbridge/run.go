package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jangala-dev/tinygo-avrbridge/bridge"
	"github.com/jangala-dev/tinygo-avrbridge/hostport"
)

var (
	runOpts = struct {
		terminal string
		peer     string
		duplex   bool
	}{}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Relay between two serial devices",
		Long:  "Open the terminal and peer devices, greet the terminal with the banner and relay until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flag("terminal").Changed {
				cfg.Terminal.Device = runOpts.terminal
			}
			if cmd.Flag("peer").Changed {
				cfg.Peer.Device = runOpts.peer
			}
			if cmd.Flag("duplex").Changed {
				cfg.Duplex = runOpts.duplex
			}

			log := hostport.NewLogger(cfg.Log, os.Stderr)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBridge(ctx, cfg, log)
		},
	}
)

func init() {
	runCmd.Flags().StringVarP(&runOpts.terminal, "terminal", "t", "", "terminal device (echoed and forwarded)")
	runCmd.Flags().StringVarP(&runOpts.peer, "peer", "P", "", "peer device")
	runCmd.Flags().BoolVarP(&runOpts.duplex, "duplex", "d", false, "also copy peer input to the terminal")
}

// runBridge opens both devices and relays until ctx is done or a device fails.
func runBridge(ctx context.Context, cfg hostport.Config, log zerolog.Logger) error {
	line := cfg.Line.UsartConfig()

	term, err := hostport.Open(cfg.Terminal.Device, line, hostport.WithLogger(log))
	if err != nil {
		return err
	}
	defer term.Close()
	peer, err := hostport.Open(cfg.Peer.Device, line, hostport.WithLogger(log))
	if err != nil {
		return err
	}
	defer peer.Close()

	eff := bridge.Start(term, peer, line)
	log.Info().
		Str("terminal", term.Name()).
		Str("peer", peer.Name()).
		Uint32("baud", eff.BaudRate).
		Uint8("data_bits", eff.DataBits).
		Uint8("stop_bits", eff.StopBits).
		Stringer("parity", eff.Parity).
		Bool("duplex", cfg.Duplex).
		Msg("bridge started")

	relayCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rel := bridge.Relay{Echo: term, Peer: peer, ForwardCR: cfg.ForwardCR}
	done := make(chan error, 1)
	go func() {
		if cfg.Duplex {
			d := &bridge.Duplex{Relay: rel, TerminalRx: term, PeerRx: peer}
			done <- d.Run(relayCtx, func() { time.Sleep(time.Millisecond) })
			return
		}
		done <- rel.Run(relayCtx)
	}()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	var runErr error
	stopped := false
loop:
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			break loop
		case err := <-done:
			stopped = true
			if !errors.Is(err, context.Canceled) {
				runErr = err
			}
			break loop
		case <-ticker.C:
			if err := errors.Join(term.Err(), peer.Err()); err != nil {
				runErr = err
				break loop
			}
		}
	}

	// The relay stops before either device closes, so nothing is handled after Close.
	cancel()
	if !stopped {
		<-done
	}
	_ = term.Close()
	_ = peer.Close()
	return runErr
}
