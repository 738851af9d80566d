package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jangala-dev/tinygo-avrbridge/usart"
)

// standardRates are the rates listed in the ATmega128 datasheet baud tables.
var standardRates = []uint32{2400, 4800, 9600, 14400, 19200, 28800, 38400, 57600, 76800, 115200, 230400}

var divisorsCmd = &cobra.Command{
	Use:   "divisors",
	Short: "Print UBRR divisors and the register image for the line settings",
	Long: "Print the UBRR divisor, generated rate and error for the standard baud rates at the " +
		"7.3728 MHz system clock, followed by the registers Init writes for the configured line.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if err := writeDivisorTable(out, standardRates); err != nil {
			return err
		}
		fmt.Fprintln(out)
		return writeImage(out, cfg.Line.UsartConfig())
	},
}

func writeDivisorTable(w io.Writer, rates []uint32) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "baud\tUBRR\tUBRRH\tUBRRL\tactual\terror\t")
	for _, baud := range rates {
		d := usart.Divisor(baud)
		hi, lo := usart.SplitDivisor(d)
		actual := usart.BaudFromDivisor(d)
		fmt.Fprintf(tw, "%d\t%d\t0x%02X\t0x%02X\t%d\t%+.1f%%\t\n",
			baud, d, hi, lo, actual, rateError(baud, actual))
	}
	return tw.Flush()
}

func rateError(want, got uint32) float64 {
	return (float64(got) - float64(want)) / float64(want) * 100
}

func writeImage(w io.Writer, cfg usart.Config) error {
	img := usart.Encode(cfg)
	eff := img.Effective
	_, err := fmt.Fprintf(w,
		"line   %d %d%s%d\nUBRRH  0x%02X\nUBRRL  0x%02X\nUCSRC  0x%02X (%08b)\nUCSRB  0x%02X (RXEN|TXEN)\n",
		eff.BaudRate, eff.DataBits, parityLetter(eff.Parity), eff.StopBits,
		img.UBRRH, img.UBRRL, img.UCSRC, img.UCSRC,
		uint8(1<<usart.RXEN|1<<usart.TXEN))
	return err
}

func parityLetter(p usart.Parity) string {
	switch p {
	case usart.ParityOdd:
		return "O"
	case usart.ParityEven:
		return "E"
	}
	return "N"
}
