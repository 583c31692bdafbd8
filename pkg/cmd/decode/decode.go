package decode

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/racelogger/laptimer-go/pkg/model"
	"github.com/racelogger/laptimer-go/pkg/protocol"
	"github.com/racelogger/laptimer-go/pkg/source"
)

var printFixes bool

// NewDecodeCmd decodes a raw receiver dump and prints what it finds. Handy
// for checking recordings and receiver wiring without a track definition.
func NewDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <recording>",
		Short: "decodes a raw receiver dump and prints a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return decodeFile(args[0])
		},
	}
	cmd.Flags().BoolVar(&printFixes, "print-fixes", false,
		"print every decoded fix")
	return cmd
}

func decodeFile(path string) error {
	src, err := source.NewFileReplay(path, -1) // unpaced
	if err != nil {
		return err
	}
	defer src.Close()

	dec := protocol.NewDecoder()
	var first, last *model.Fix
	err = source.Pump(context.Background(), src, func(chunk []byte) {
		for _, fix := range dec.Decode(chunk) {
			if printFixes {
				fmt.Fprintf(os.Stdout, "%s lat=%.7f lon=%.7f\n",
					fix.Time.Format("15:04:05.000"), fix.Lat, fix.Lon)
			}
			f := fix
			if first == nil {
				first = &f
			}
			last = &f
		}
	})
	if err != nil {
		return err
	}

	decoded, dropped, ignored := dec.Stats()
	fmt.Fprintf(os.Stdout, "decoded=%d dropped=%d ignored=%d\n",
		decoded, dropped, ignored)
	if first != nil {
		fmt.Fprintf(os.Stdout, "from %s to %s (%s)\n",
			first.Time.Format("2006-01-02 15:04:05"),
			last.Time.Format("15:04:05"),
			last.Time.Sub(first.Time).Round(0))
	}
	return nil
}
