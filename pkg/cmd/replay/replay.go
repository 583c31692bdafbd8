package replay

import (
	"github.com/spf13/cobra"

	"github.com/racelogger/laptimer-go/pkg/cmd/live"
	"github.com/racelogger/laptimer-go/pkg/config"
)

// NewReplayCmd replays a recorded raw receiver dump through the full
// pipeline. Apart from the forced file source it behaves like live.
func NewReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <recording>",
		Short: "replays a recorded session from a raw receiver dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config.Source = "file:" + args[0]
			return live.Start()
		},
	}
	cmd.Flags().StringVarP(&config.Track,
		"track",
		"t",
		"",
		"track definition file (yaml)")
	//nolint:errcheck // flag exists
	cmd.MarkFlagRequired("track")
	cmd.Flags().StringSliceVar(&config.Drivers,
		"drivers",
		nil,
		"ordered driver roster; the first entry starts the session")
	cmd.Flags().StringVar(&config.MinPitTime,
		"min-pit-time",
		"0s",
		"pit clock stops automatically after this duration (0: manual)")
	cmd.Flags().StringVar(&config.WebServerAddr,
		"web-addr",
		"localhost:8088",
		"listen address for the live display server (empty: disabled)")

	live.AddCommonFlags(cmd)
	return cmd
}
