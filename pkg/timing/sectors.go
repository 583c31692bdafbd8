package timing

import (
	"time"

	"github.com/racelogger/laptimer-go/log"
	"github.com/racelogger/laptimer-go/pkg/geom"
	"github.com/racelogger/laptimer-go/pkg/model"
)

// initSectorSlots sizes the per-slot arrays. The effective sector count is
// one per defined sector line plus the final sector which is closed by the
// start/finish line.
func (e *Engine) initSectorSlots() {
	count := len(e.sectorLines) + 1
	e.sectorLastCross = make([]time.Time, len(e.sectorLines))
	e.sectorBest = make([]time.Duration, count)
	e.sectorPrev = make([]time.Duration, count)
	e.sectorCur = make([]time.Duration, count)
	e.sectorStates = make([]model.SectorState, count)
}

// resetSectorRound restarts sector bookkeeping at now. The just-recorded
// times are discarded, not promoted; personal bests stay.
func (e *Engine) resetSectorRound(now time.Time) {
	if len(e.sectorLines) == 0 {
		return
	}
	e.currentSector = 0
	e.sectorStart = now
	for i := range e.sectorCur {
		e.sectorCur[i] = 0
		e.sectorStates[i] = model.SectorNeutral
	}
	for i := range e.sectorLastCross {
		e.sectorLastCross[i] = time.Time{}
	}
}

// processSectors runs the per-fix sector logic: lazy start-time init and
// the crossing test against the current sector's line.
func (e *Engine) processSectors(p1, p2 model.GeoPoint, fix model.Fix) {
	if len(e.sectorLines) == 0 {
		return
	}
	if e.lapActive() && e.sectorStart.IsZero() {
		e.sectorStart = e.lapStart
	}
	if !e.lapActive() {
		return
	}
	if e.currentSector >= len(e.sectorLines) {
		// all lines crossed; the final sector is closed by start/finish
		return
	}
	window := e.cfg.debounceWindow(fix.SpeedKmh)
	if last := e.sectorLastCross[e.currentSector]; !last.IsZero() &&
		fix.Time.Sub(last) < window {
		return
	}
	if !geom.SegmentsCross(p1, p2, *e.sectorLines[e.currentSector]) {
		return
	}
	e.sectorLastCross[e.currentSector] = fix.Time
	e.finalizeSector(e.currentSector, fix.Time)
	e.currentSector++
	e.sectorStart = fix.Time
}

// finalizeSector closes the given sector slot at now: records its time,
// classifies it and updates the slot's personal best.
func (e *Engine) finalizeSector(slot int, now time.Time) {
	if len(e.sectorLines) == 0 || e.sectorStart.IsZero() {
		return
	}
	if slot < 0 || slot >= len(e.sectorCur) {
		return
	}
	t := now.Sub(e.sectorStart)
	if t <= 0 {
		return
	}
	// a new best-ever wins over faster-than-last-lap
	state := model.SectorSlower
	switch {
	case e.sectorBest[slot] == 0 || t < e.sectorBest[slot]:
		state = model.SectorBest
		e.sectorBest[slot] = t
	case e.sectorPrev[slot] != 0 && t < e.sectorPrev[slot]:
		state = model.SectorFaster
	}
	e.sectorCur[slot] = t
	e.sectorStates[slot] = state
	e.l.Debug("sector completed",
		log.Int("sector", slot+1),
		log.Duration("time", t),
		log.Stringer("state", state))
}

// scheduleSectorReset defers the roll-over of the sector display to the top
// of the list so the completed lap's sector states stay visible briefly.
// The deferred action carries a generation and is dropped when a newer lap
// completion or a reset superseded it.
func (e *Engine) scheduleSectorReset(lapStart time.Time) {
	if len(e.sectorLines) == 0 {
		return
	}
	if e.cancelSectorReset != nil {
		e.cancelSectorReset()
	}
	e.sectorResetGen++
	gen := e.sectorResetGen
	e.cancelSectorReset = e.schedule(e.cfg.SectorHold, func() {
		e.applySectorReset(gen, lapStart)
	})
}

// applySectorReset promotes the completed lap's sector times to "previous
// lap" and clears the live display. Stale callbacks no-op.
func (e *Engine) applySectorReset(gen int, lapStart time.Time) {
	if gen != e.sectorResetGen {
		return
	}
	e.cancelSectorReset = nil
	copy(e.sectorPrev, e.sectorCur)
	e.resetSectorRound(lapStart)
}
