// Package timing owns all per-session race timing state: lap and sector
// times, the delta-to-best signal, pit clock and driver stints. The engine
// is written for one logical execution context per session; none of its
// methods are goroutine safe. Callers (see pkg/session) funnel every
// ingest, lifecycle call and timer callback through a single goroutine.
package timing

import (
	"time"

	"github.com/google/uuid"

	"github.com/racelogger/laptimer-go/log"
	"github.com/racelogger/laptimer-go/pkg/geom"
	"github.com/racelogger/laptimer-go/pkg/model"
)

type (
	CancelFunc func()
	// ScheduleFunc runs fn once after d. The session controller provides an
	// implementation that serializes fn with the other engine calls.
	ScheduleFunc func(d time.Duration, fn func()) CancelFunc
	LapFlashFunc func(model.LapFlash)
)

type Engine struct {
	cfg        RaceConfig
	state      model.SessionState
	armed      bool
	sessionKey string

	l        *log.Logger
	now      func() time.Time
	schedule ScheduleFunc
	onFlash  LapFlashFunc

	// track snapshot
	sectorLines []*model.TrackLine

	// gps tracking
	prevFix  *model.Fix
	awaiting bool // true until the first start/finish crossing after Start

	// current lap
	lapStart     time.Time // zero while the lap clock has not started
	lapDistance  float64
	lapSamples   []lapSample
	lastCrossing time.Time // start/finish debounce

	// sectors (slot arrays sized SectorCount)
	currentSector     int
	sectorStart       time.Time
	sectorLastCross   []time.Time
	sectorBest        []time.Duration
	sectorPrev        []time.Duration
	sectorCur         []time.Duration
	sectorStates      []model.SectorState
	sectorResetGen    int
	cancelSectorReset CancelFunc

	// results
	lapCount int
	lastLap  time.Duration
	bestLap  time.Duration

	// delta
	reference *referenceLap
	delta     float64 // smoothed seconds

	// pit
	pitEngaged bool
	pitStart   time.Time
	pitElapsed time.Duration

	// stints
	selectedDriver string
	stintDriver    string
	stintNo        int
	stintStart     time.Time
	stintOpen      bool
	stintCounts    map[string]int
	stints         []model.StintRecord
}

type EngineOption func(*Engine)

// WithClock replaces the wall clock (used for pit and stint bookkeeping and
// live elapsed values; lap math runs on fix timestamps).
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

func WithScheduler(schedule ScheduleFunc) EngineOption {
	return func(e *Engine) {
		e.schedule = schedule
	}
}

// WithLapFlashFunc registers the callback invoked exactly once per
// completed lap.
func WithLapFlashFunc(fn LapFlashFunc) EngineOption {
	return func(e *Engine) {
		e.onFlash = fn
	}
}

func WithLogger(l *log.Logger) EngineOption {
	return func(e *Engine) {
		e.l = l
	}
}

func NewEngine(opts ...EngineOption) *Engine {
	ret := &Engine{
		l:   log.Default().Named("timing"),
		now: time.Now,
	}
	ret.schedule = func(d time.Duration, fn func()) CancelFunc {
		t := time.AfterFunc(d, fn)
		return func() { t.Stop() }
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.stintCounts = make(map[string]int)
	return ret
}

func (e *Engine) State() model.SessionState { return e.state }
func (e *Engine) SessionKey() string        { return e.sessionKey }
func (e *Engine) PitEngaged() bool          { return e.pitEngaged }

// Arm stores the race configuration, resets all session state and
// transitions to Armed. Timing does not start yet.
func (e *Engine) Arm(cfg RaceConfig) {
	cfg.applyDefaults()
	e.Reset()
	e.cfg = cfg
	e.armed = true
	e.sessionKey = uuid.New().String()
	e.sectorLines = cfg.Track.DefinedSectorLines()
	e.initSectorSlots()
	if len(cfg.Drivers) > 0 {
		e.selectedDriver = cfg.Drivers[0]
	}
	e.state = model.StateArmed
	e.l.Info("session armed",
		log.String("sessionKey", e.sessionKey),
		log.String("track", cfg.Track.Name),
		log.Int("sectors", cfg.Track.SectorCount()))
}

// Start arms GPS ingestion. The lap clock itself begins with the first
// start/finish crossing; any lap left in progress by a previous Stop is
// discarded. Calling Start while not armed is a no-op.
func (e *Engine) Start() {
	if e.state == model.StateRunning || !e.armed {
		return
	}
	if e.cancelSectorReset != nil {
		e.cancelSectorReset()
		e.cancelSectorReset = nil
	}
	e.sectorResetGen++
	e.awaiting = true
	e.prevFix = nil
	e.lapStart = time.Time{}
	e.lapDistance = 0
	e.lapSamples = nil
	e.lastCrossing = time.Time{}
	e.sectorStart = time.Time{}
	e.delta = 0
	driver := e.selectedDriver
	e.openStint(driver, e.now())
	e.state = model.StateRunning
	e.l.Info("session started", log.String("driver", driver))
}

// Stop closes the in-progress stint and halts timing. Historical results
// are kept; Start may be called again.
func (e *Engine) Stop() {
	if e.state != model.StateRunning {
		return
	}
	if e.stintOpen {
		e.closeStint(e.now())
	}
	e.disengagePit()
	e.state = model.StateArmed
	e.l.Info("session stopped", log.Int("laps", e.lapCount))
}

// Reset clears all lap/sector/stint/GPS state back to initial values.
func (e *Engine) Reset() {
	if e.cancelSectorReset != nil {
		e.cancelSectorReset()
		e.cancelSectorReset = nil
	}
	e.sectorResetGen++

	e.state = model.StateIdle
	e.armed = false
	e.sessionKey = ""
	e.sectorLines = nil
	e.prevFix = nil
	e.awaiting = false
	e.lapStart = time.Time{}
	e.lapDistance = 0
	e.lapSamples = nil
	e.lastCrossing = time.Time{}
	e.currentSector = 0
	e.sectorStart = time.Time{}
	e.sectorLastCross = nil
	e.sectorBest = nil
	e.sectorPrev = nil
	e.sectorCur = nil
	e.sectorStates = nil
	e.lapCount = 0
	e.lastLap = 0
	e.bestLap = 0
	e.reference = nil
	e.delta = 0
	e.disengagePit()
	e.selectedDriver = ""
	e.stintDriver = ""
	e.stintNo = 0
	e.stintStart = time.Time{}
	e.stintOpen = false
	e.stintCounts = make(map[string]int)
	e.stints = nil
}

// Ingest processes one decoded fix. Outside Running it does nothing. The
// very first fix only becomes "previous"; a fix below the stationary speed
// threshold is skipped for processing but still becomes "previous" so a
// brief dip does not break continuity.
func (e *Engine) Ingest(fix model.Fix) {
	if e.state != model.StateRunning {
		return
	}
	prev := e.prevFix
	e.prevFix = &fix
	if prev == nil {
		return
	}
	if fix.SpeedKmh != nil && *fix.SpeedKmh < e.cfg.MinSpeedKmh {
		return
	}

	p1 := model.GeoPoint{Lat: prev.Lat, Lon: prev.Lon}
	p2 := model.GeoPoint{Lat: fix.Lat, Lon: fix.Lon}

	// distance accumulation; GPS jumps are not accumulated but crossing
	// detection below still sees the raw positions
	if step := geom.Haversine(p1, p2); step < e.cfg.DistanceOutlierM {
		e.lapDistance += step
	}

	if e.lapActive() {
		elapsed := fix.Time.Sub(e.lapStart)
		e.lapSamples = append(e.lapSamples,
			lapSample{dist: e.lapDistance, elapsed: elapsed})
		e.updateDelta(elapsed)
	}

	if sf := e.cfg.Track.StartFinish; sf != nil && geom.SegmentsCross(p1, p2, *sf) {
		if e.lastCrossing.IsZero() ||
			fix.Time.Sub(e.lastCrossing) >= e.cfg.CrossingDebounce {
			e.lastCrossing = fix.Time
			e.registerLapCrossing(fix.Time)
		}
	}

	e.processSectors(p1, p2, fix)
}

func (e *Engine) lapActive() bool { return !e.lapStart.IsZero() }

// updateDelta interpolates the reference time at the current distance and
// feeds the difference into the smoothed delta. Without a reference lap the
// published delta stays at zero instead of showing noise.
func (e *Engine) updateDelta(elapsed time.Duration) {
	if e.reference == nil {
		e.delta = 0
		return
	}
	raw := (elapsed - e.reference.timeAt(e.lapDistance)).Seconds()
	e.delta += e.cfg.DeltaSmoothing * (raw - e.delta)
}

// registerLapCrossing handles a debounced start/finish crossing at now.
func (e *Engine) registerLapCrossing(now time.Time) {
	if e.awaiting || !e.lapActive() {
		// first crossing after Start: establishes the lap clock origin
		e.awaiting = false
		e.originLap(now)
		e.l.Debug("lap clock started", log.Time("origin", now))
		return
	}
	lapTime := now.Sub(e.lapStart)
	if lapTime < e.cfg.MinLapDuration {
		// false trigger: re-baseline and continue
		e.originLap(now)
		e.l.Debug("false lap trigger absorbed", log.Duration("lapTime", lapTime))
		return
	}
	// the final sector is closed by the start/finish line
	e.finalizeSector(e.currentSector, now)
	e.completeLap(lapTime)

	e.lapStart = now
	e.lapDistance = 0
	e.lapSamples = e.lapSamples[:0]
	e.scheduleSectorReset(now)
}

// originLap (re)starts the lap clock at now without counting a lap. Sector
// bookkeeping restarts at the same instant.
func (e *Engine) originLap(now time.Time) {
	if e.cancelSectorReset != nil {
		e.cancelSectorReset()
		e.cancelSectorReset = nil
	}
	e.sectorResetGen++
	e.lapStart = now
	e.lapDistance = 0
	e.lapSamples = e.lapSamples[:0]
	e.resetSectorRound(now)
}

// completeLap records a finished lap and emits the lap flash event.
func (e *Engine) completeLap(lapTime time.Duration) {
	class := model.LapNormal
	switch {
	case e.bestLap == 0 || lapTime < e.bestLap:
		class = model.LapBestEver
		e.bestLap = lapTime
	case e.lastLap != 0 && lapTime < e.lastLap:
		class = model.LapImprovedPrevious
	}
	e.lastLap = lapTime
	e.lapCount++
	e.l.Info("lap completed",
		log.Int("lap", e.lapCount),
		log.Duration("time", lapTime),
		log.Stringer("class", class))
	if e.onFlash != nil {
		e.onFlash(model.LapFlash{LapNo: e.lapCount, LapTime: lapTime, Class: class})
	}

	// the best field may just have been overwritten, compare by value
	if durationsNearEqual(lapTime, e.bestLap) {
		if ref := newReferenceLap(e.lapSamples,
			e.cfg.MinRefLapSamples, e.cfg.MinRefLapDistance); ref != nil {
			e.reference = ref
			e.l.Debug("reference lap replaced",
				log.Int("samples", len(ref.samples)),
				log.Float64("distance", ref.maxDist))
		}
	}
	e.delta = 0
}

func durationsNearEqual(a, b time.Duration) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < time.Millisecond
}

// Snapshot assembles the published state for UI collaborators.
func (e *Engine) Snapshot() model.Snapshot {
	now := e.now()
	snap := model.Snapshot{
		SessionKey:    e.sessionKey,
		State:         e.state,
		LapActive:     e.lapActive(),
		LastLapTime:   e.lastLap,
		BestLapTime:   e.bestLap,
		LapCount:      e.lapCount,
		DeltaBest:     e.delta,
		CurrentSector: e.currentSector,
		Pit: model.PitSnapshot{
			Engaged: e.pitEngaged,
			Elapsed: e.pitElapsed,
		},
		Stints: e.stints,
	}
	if e.lapActive() && e.state == model.StateRunning {
		snap.CurrentLapTime = now.Sub(e.lapStart)
	}
	if !e.sectorStart.IsZero() && e.state == model.StateRunning {
		snap.CurrentSectorElapsed = now.Sub(e.sectorStart)
	}
	snap.Sectors = make([]model.SectorSnapshot, len(e.sectorStates))
	for i := range e.sectorStates {
		snap.Sectors[i] = model.SectorSnapshot{
			State: e.sectorStates[i],
			Time:  e.sectorCur[i],
		}
	}
	if e.stintOpen {
		snap.Stint = model.StintSnapshot{
			Driver:  e.stintDriver,
			Number:  e.stintNo,
			Elapsed: now.Sub(e.stintStart),
		}
	}
	return snap
}
