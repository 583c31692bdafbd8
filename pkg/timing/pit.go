package timing

import (
	"time"

	"github.com/racelogger/laptimer-go/log"
)

// TogglePit flips the pit clock. The caller drives PitTick periodically
// while the pit is engaged. Returns the new engaged state.
func (e *Engine) TogglePit() bool {
	if e.pitEngaged {
		e.disengagePit()
		e.l.Info("pit clock stopped")
		return false
	}
	e.pitEngaged = true
	e.pitStart = e.now()
	e.pitElapsed = 0
	e.l.Info("pit clock started",
		log.Duration("minPitDuration", e.cfg.MinPitDuration))
	return true
}

// PitTick republishes the elapsed pit time and auto-disengages once the
// configured minimum pit duration is reached.
func (e *Engine) PitTick() {
	if !e.pitEngaged {
		return
	}
	e.pitElapsed = e.now().Sub(e.pitStart)
	if e.cfg.MinPitDuration > 0 && e.pitElapsed >= e.cfg.MinPitDuration {
		e.l.Info("minimum pit duration reached",
			log.Duration("elapsed", e.pitElapsed))
		e.disengagePit()
	}
}

func (e *Engine) disengagePit() {
	e.pitEngaged = false
	e.pitStart = time.Time{}
	e.pitElapsed = 0
}
