package model

import "time"

// SectorState is the qualitative classification of a completed sector.
type SectorState int

const (
	SectorNeutral SectorState = iota
	SectorSlower
	SectorFaster
	SectorBest
)

func (s SectorState) String() string {
	switch s {
	case SectorSlower:
		return "slower"
	case SectorFaster:
		return "faster"
	case SectorBest:
		return "best"
	default:
		return "neutral"
	}
}

// LapClass classifies a completed lap relative to the session history.
type LapClass int

const (
	LapNormal LapClass = iota
	LapImprovedPrevious
	LapBestEver
)

func (c LapClass) String() string {
	switch c {
	case LapImprovedPrevious:
		return "improved"
	case LapBestEver:
		return "best"
	default:
		return "normal"
	}
}

// LapFlash is emitted exactly once per completed lap.
type LapFlash struct {
	LapNo   int           `json:"lapNo"`
	LapTime time.Duration `json:"lapTime"`
	Class   LapClass      `json:"class"`
}

// StintRecord is a closed driver stint. Number counts per driver.
type StintRecord struct {
	Driver string    `json:"driver"`
	Number int       `json:"number"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// SessionState is the engine lifecycle state.
type SessionState int

const (
	StateIdle SessionState = iota
	StateArmed
	StateRunning
)

func (s SessionState) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateRunning:
		return "running"
	default:
		return "idle"
	}
}

type SectorSnapshot struct {
	State SectorState   `json:"state"`
	Time  time.Duration `json:"time"`
}

type PitSnapshot struct {
	Engaged bool          `json:"engaged"`
	Elapsed time.Duration `json:"elapsed"`
}

type StintSnapshot struct {
	Driver  string        `json:"driver"`
	Number  int           `json:"number"`
	Elapsed time.Duration `json:"elapsed"`
}

// Snapshot is the engine state published to UI collaborators.
type Snapshot struct {
	SessionKey string       `json:"sessionKey"`
	State      SessionState `json:"state"`

	LapActive      bool          `json:"lapActive"`
	CurrentLapTime time.Duration `json:"currentLapTime"`
	LastLapTime    time.Duration `json:"lastLapTime"`
	BestLapTime    time.Duration `json:"bestLapTime"`
	LapCount       int           `json:"lapCount"`

	// DeltaBest is the smoothed delta to the best lap in seconds,
	// negative when ahead.
	DeltaBest float64 `json:"deltaBest"`

	Sectors              []SectorSnapshot `json:"sectors"`
	CurrentSector        int              `json:"currentSector"`
	CurrentSectorElapsed time.Duration    `json:"currentSectorElapsed"`

	Pit    PitSnapshot   `json:"pit"`
	Stint  StintSnapshot `json:"stint"`
	Stints []StintRecord `json:"stints,omitempty"`
}
