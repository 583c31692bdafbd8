package timing

import (
	"time"

	"github.com/racelogger/laptimer-go/pkg/model"
)

// SpeedDebounce maps a speed band to the guard window after a detected
// sector crossing. Faster motion crosses a physical line in less wall time,
// so the window shrinks with speed.
type SpeedDebounce struct {
	MaxSpeedKmh float64
	Window      time.Duration
}

// RaceConfig is the per-race configuration captured at Arm time. The track
// snapshot is owned by the engine afterwards; callers must not mutate it
// while the session runs. The threshold values are empirically chosen and
// therefore tunable; zero values are replaced by the defaults below.
type RaceConfig struct {
	Track          model.TrackDefinition
	Drivers        []string
	MinPitDuration time.Duration

	MinSpeedKmh       float64         // below this a fix is treated as stationary
	DistanceOutlierM  float64         // step distances above this are not accumulated
	MinLapDuration    time.Duration   // crossings earlier than this only re-origin
	CrossingDebounce  time.Duration   // start/finish line debounce
	SectorDebounce    []SpeedDebounce // ascending by MaxSpeedKmh, last entry is the catch-all
	DeltaSmoothing    float64         // EWMA factor for the delta signal
	MinRefLapSamples  int             // below this a lap is not promoted to reference
	MinRefLapDistance float64         // meters
	SectorHold        time.Duration   // how long completed sector states stay visible
}

const (
	defaultMinSpeedKmh       = 3.0
	defaultDistanceOutlierM  = 50.0
	defaultMinLapDuration    = 20 * time.Second
	defaultCrossingDebounce  = 2 * time.Second
	defaultDeltaSmoothing    = 0.18
	defaultMinRefLapSamples  = 5
	defaultMinRefLapDistance = 50.0
	defaultSectorHold        = 3 * time.Second
)

func defaultSectorDebounce() []SpeedDebounce {
	return []SpeedDebounce{
		{MaxSpeedKmh: 20, Window: 2200 * time.Millisecond},
		{MaxSpeedKmh: 50, Window: 1600 * time.Millisecond},
		{MaxSpeedKmh: 90, Window: 1100 * time.Millisecond},
		{Window: 800 * time.Millisecond},
	}
}

func (c *RaceConfig) applyDefaults() {
	if c.MinSpeedKmh == 0 {
		c.MinSpeedKmh = defaultMinSpeedKmh
	}
	if c.DistanceOutlierM == 0 {
		c.DistanceOutlierM = defaultDistanceOutlierM
	}
	if c.MinLapDuration == 0 {
		c.MinLapDuration = defaultMinLapDuration
	}
	if c.CrossingDebounce == 0 {
		c.CrossingDebounce = defaultCrossingDebounce
	}
	if len(c.SectorDebounce) == 0 {
		c.SectorDebounce = defaultSectorDebounce()
	}
	if c.DeltaSmoothing == 0 {
		c.DeltaSmoothing = defaultDeltaSmoothing
	}
	if c.MinRefLapSamples == 0 {
		c.MinRefLapSamples = defaultMinRefLapSamples
	}
	if c.MinRefLapDistance == 0 {
		c.MinRefLapDistance = defaultMinRefLapDistance
	}
	if c.SectorHold == 0 {
		c.SectorHold = defaultSectorHold
	}
}

// debounceWindow picks the guard window for the given speed. An unknown
// speed gets the most conservative window.
func (c *RaceConfig) debounceWindow(speedKmh *float64) time.Duration {
	ladder := c.SectorDebounce
	if speedKmh == nil {
		return ladder[0].Window
	}
	for _, step := range ladder[:len(ladder)-1] {
		if *speedKmh < step.MaxSpeedKmh {
			return step.Window
		}
	}
	return ladder[len(ladder)-1].Window
}
