package timing

import (
	"time"

	"github.com/racelogger/laptimer-go/log"
	"github.com/racelogger/laptimer-go/pkg/model"
)

// SelectDriver changes the active driver. While running this closes the
// current stint and opens a new one for the selected driver; otherwise only
// the selection pointer moves.
func (e *Engine) SelectDriver(name string) {
	if e.state == model.StateRunning && e.stintOpen && name != e.stintDriver {
		now := e.now()
		e.closeStint(now)
		e.openStint(name, now)
	}
	e.selectedDriver = name
}

func (e *Engine) SelectedDriver() string { return e.selectedDriver }

// StintHistory returns the closed stints in chronological order.
func (e *Engine) StintHistory() []model.StintRecord { return e.stints }

func (e *Engine) openStint(driver string, now time.Time) {
	e.stintCounts[driver]++
	e.stintDriver = driver
	e.stintNo = e.stintCounts[driver]
	e.stintStart = now
	e.stintOpen = true
	e.l.Info("stint started",
		log.String("driver", driver),
		log.Int("stint", e.stintNo))
}

func (e *Engine) closeStint(now time.Time) {
	rec := model.StintRecord{
		Driver: e.stintDriver,
		Number: e.stintNo,
		Start:  e.stintStart,
		End:    now,
	}
	e.stints = append(e.stints, rec)
	e.stintOpen = false
	e.l.Info("stint closed",
		log.String("driver", rec.Driver),
		log.Int("stint", rec.Number),
		log.Duration("duration", rec.End.Sub(rec.Start)))
}
