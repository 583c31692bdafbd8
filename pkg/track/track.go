// Package track loads and validates track definition files.
package track

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/racelogger/laptimer-go/pkg/model"
)

var ErrInvalidTrack = errors.New("invalid track definition")

// Load reads a track definition from a YAML file and validates it.
func Load(path string) (*model.TrackDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading track file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*model.TrackDefinition, error) {
	var def model.TrackDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing track file: %w", err)
	}
	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the parts the timing engine relies on. A track without a
// start/finish line is accepted; the engine then runs without lap timing.
func Validate(def *model.TrackDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTrack)
	}
	if def.StartFinish != nil {
		if err := validateLine("startFinish", def.StartFinish); err != nil {
			return err
		}
	}
	for i, line := range def.SectorLines {
		if line == nil {
			continue
		}
		if def.StartFinish == nil {
			return fmt.Errorf(
				"%w: sector lines require a start/finish line", ErrInvalidTrack)
		}
		if err := validateLine(fmt.Sprintf("sectorLines[%d]", i), line); err != nil {
			return err
		}
	}
	return nil
}

func validateLine(name string, line *model.TrackLine) error {
	if line.A == line.B {
		return fmt.Errorf("%w: %s has zero length", ErrInvalidTrack, name)
	}
	for _, p := range []model.GeoPoint{line.A, line.B} {
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			return fmt.Errorf("%w: %s has coordinates out of range",
				ErrInvalidTrack, name)
		}
	}
	return nil
}

// Save writes a track definition, used by the track scaffolding command.
func Save(path string, def *model.TrackDefinition) error {
	if err := Validate(def); err != nil {
		return err
	}
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshalling track: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
