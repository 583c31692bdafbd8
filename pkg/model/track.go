package model

import (
	"fmt"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

type GeoPoint struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// TrackLine is a geographic segment between two points. A nil *TrackLine
// means the line is not defined; defined lines always carry both endpoints.
type TrackLine struct {
	A GeoPoint `json:"a" yaml:"a"`
	B GeoPoint `json:"b" yaml:"b"`
}

// MaxSectorLines is the number of intermediate sector line slots of a track.
const MaxSectorLines = 3

// TrackDefinition describes the geometry the engine is armed with.
// Direction is informational only.
type TrackDefinition struct {
	Name        string                     `json:"name" yaml:"name"`
	Direction   string                     `json:"direction,omitempty" yaml:"direction,omitempty"`
	StartFinish *TrackLine                 `json:"startFinish,omitempty" yaml:"startFinish,omitempty"`
	SectorLines [MaxSectorLines]*TrackLine `json:"sectorLines,omitempty" yaml:"sectorLines,omitempty"`
}

// trackDefYAML is the on-disk shape: sector lines are a plain sequence of
// up to MaxSectorLines entries, not a fixed slot array.
type trackDefYAML struct {
	Name        string       `yaml:"name"`
	Direction   string       `yaml:"direction,omitempty"`
	StartFinish *TrackLine   `yaml:"startFinish,omitempty"`
	SectorLines []*TrackLine `yaml:"sectorLines,omitempty"`
}

// UnmarshalYAML accepts any number of declared sector lines up to
// MaxSectorLines and fills the remaining slots with nil.
func (t *TrackDefinition) UnmarshalYAML(value *yaml.Node) error {
	var raw trackDefYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if len(raw.SectorLines) > MaxSectorLines {
		return fmt.Errorf("at most %d sector lines are supported, got %d",
			MaxSectorLines, len(raw.SectorLines))
	}
	*t = TrackDefinition{
		Name:        raw.Name,
		Direction:   raw.Direction,
		StartFinish: raw.StartFinish,
	}
	copy(t.SectorLines[:], raw.SectorLines)
	return nil
}

// MarshalYAML writes only the defined sector lines.
func (t TrackDefinition) MarshalYAML() (any, error) {
	return trackDefYAML{
		Name:        t.Name,
		Direction:   t.Direction,
		StartFinish: t.StartFinish,
		SectorLines: t.DefinedSectorLines(),
	}, nil
}

// DefinedSectorLines returns the defined sector lines in declared order.
func (t *TrackDefinition) DefinedSectorLines() []*TrackLine {
	return lo.Filter(t.SectorLines[:], func(l *TrackLine, _ int) bool {
		return l != nil
	})
}

// SectorCount is the effective number of sectors: one per defined sector
// line plus the final sector that is closed by the start/finish line.
func (t *TrackDefinition) SectorCount() int {
	return len(t.DefinedSectorLines()) + 1
}
