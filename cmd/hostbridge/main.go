// Command hostbridge runs the terminal-to-peer serial relay on a host computer, either
// between two real serial devices or against simulated USARTs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jangala-dev/tinygo-avrbridge/hostport"
	"github.com/jangala-dev/tinygo-avrbridge/usart"
)

var (
	rootOpts = struct {
		config    string
		logLevel  string
		baud      uint32
		dataBits  uint8
		stopBits  uint8
		parity    string
		forwardCR bool
	}{}

	rootCmd = &cobra.Command{
		Use:           "hostbridge",
		Short:         "Serial terminal relay",
		Long:          "Echo bytes typed on a terminal line and forward them to a peer line, as the ATmega128 bridge firmware does.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	def := usart.DefaultConfig()
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&rootOpts.config, "config", "c", "", "YAML configuration file")
	pf.StringVar(&rootOpts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	pf.Uint32VarP(&rootOpts.baud, "baud", "b", def.BaudRate, "line baud rate")
	pf.Uint8Var(&rootOpts.dataBits, "data-bits", def.DataBits, "data bits (5-8)")
	pf.Uint8Var(&rootOpts.stopBits, "stop-bits", def.StopBits, "stop bits (1 or 2)")
	pf.StringVarP(&rootOpts.parity, "parity", "p", def.Parity.String(), "parity (none, odd, even)")
	pf.BoolVar(&rootOpts.forwardCR, "forward-cr", false, "also send carriage returns to the peer")

	rootCmd.AddCommand(runCmd, simCmd, portsCmd, divisorsCmd)
}

// loadConfig reads --config and applies every line flag given explicitly on the
// command line over it.
func loadConfig(cmd *cobra.Command) (hostport.Config, error) {
	cfg, err := hostport.LoadConfig(rootOpts.config)
	if err != nil {
		return hostport.Config{}, err
	}
	changed := func(name string) bool {
		f := cmd.Flag(name)
		return f != nil && f.Changed
	}
	if changed("log-level") {
		cfg.Log.Level = rootOpts.logLevel
	}
	if changed("baud") {
		cfg.Line.Baud = rootOpts.baud
	}
	if changed("data-bits") {
		cfg.Line.DataBits = rootOpts.dataBits
	}
	if changed("stop-bits") {
		cfg.Line.StopBits = rootOpts.stopBits
	}
	if changed("parity") {
		p, err := hostport.ParseParity(rootOpts.parity)
		if err != nil {
			return hostport.Config{}, err
		}
		cfg.Line.Parity = p.String()
	}
	if changed("forward-cr") {
		cfg.ForwardCR = rootOpts.forwardCR
	}
	if err := cfg.Validate(); err != nil {
		return hostport.Config{}, fmt.Errorf("hostbridge: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hostbridge:", err)
		os.Exit(1)
	}
}
