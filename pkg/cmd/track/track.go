package track

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/racelogger/laptimer-go/pkg/model"
	"github.com/racelogger/laptimer-go/pkg/track"
)

func NewTrackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "commands regarding track definition files",
	}
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newInitCmd())
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "validates a track definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := track.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s: ok (%d sectors)\n",
				def.Name, def.SectorCount())
			return nil
		},
	}
}

func newInitCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "init <file>",
		Short: "writes a track definition skeleton to edit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def := &model.TrackDefinition{
				Name:      name,
				Direction: "clockwise",
				StartFinish: &model.TrackLine{
					A: model.GeoPoint{Lat: 50.4450, Lon: 5.9700},
					B: model.GeoPoint{Lat: 50.4452, Lon: 5.9700},
				},
			}
			if err := track.Save(args[0], def); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "wrote %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "unnamed track", "track name")
	return cmd
}
