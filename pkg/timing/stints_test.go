package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/racelogger/laptimer-go/pkg/model"
)

func TestStintAccounting(t *testing.T) {
	h := newHarness(t, sfOnlyTrack()) // Start at testBase opens alice's stint

	h.clk.t = testBase.Add(100 * time.Second)
	h.e.SelectDriver("bob")
	h.clk.t = testBase.Add(250 * time.Second)
	h.e.SelectDriver("bob") // same driver: no stint change
	h.clk.t = testBase.Add(300 * time.Second)
	h.e.SelectDriver("carol")
	h.clk.t = testBase.Add(450 * time.Second)
	h.e.Stop()

	hist := h.e.StintHistory()
	if assert.Len(t, hist, 3) {
		assert.Equal(t, model.StintRecord{
			Driver: "alice", Number: 1,
			Start: testBase, End: testBase.Add(100 * time.Second),
		}, hist[0])
		assert.Equal(t, "bob", hist[1].Driver)
		assert.Equal(t, 200*time.Second, hist[1].End.Sub(hist[1].Start))
		assert.Equal(t, "carol", hist[2].Driver)
		assert.Equal(t, 150*time.Second, hist[2].End.Sub(hist[2].Start))
	}

	// closed stints cover the whole running time without gaps or overlap
	var sum time.Duration
	for i, rec := range hist {
		sum += rec.End.Sub(rec.Start)
		if i > 0 {
			assert.Equal(t, hist[i-1].End, rec.Start)
		}
	}
	assert.Equal(t, 450*time.Second, sum)
}

func TestStintNumbersPerDriver(t *testing.T) {
	h := newHarness(t, sfOnlyTrack())

	h.clk.t = testBase.Add(time.Minute)
	h.e.SelectDriver("bob")
	h.clk.t = testBase.Add(2 * time.Minute)
	h.e.SelectDriver("alice") // alice's second stint
	h.clk.t = testBase.Add(3 * time.Minute)
	h.e.Stop()

	hist := h.e.StintHistory()
	if assert.Len(t, hist, 3) {
		assert.Equal(t, 1, hist[0].Number)
		assert.Equal(t, 1, hist[1].Number)
		assert.Equal(t, 2, hist[2].Number, "stint numbers count per driver")
	}
}

func TestSelectDriverWhileStopped(t *testing.T) {
	h := newHarness(t, sfOnlyTrack())
	h.clk.t = testBase.Add(time.Minute)
	h.e.Stop()

	// only moves the selection; the next Start opens the stint
	h.e.SelectDriver("bob")
	assert.Equal(t, "bob", h.e.SelectedDriver())
	assert.Len(t, h.e.StintHistory(), 1)

	h.clk.t = testBase.Add(2 * time.Minute)
	h.e.Start()
	snap := h.e.Snapshot()
	assert.Equal(t, "bob", snap.Stint.Driver)
	assert.Equal(t, 1, snap.Stint.Number)
}

func TestStintSnapshotElapsed(t *testing.T) {
	h := newHarness(t, sfOnlyTrack())
	h.clk.t = testBase.Add(90 * time.Second)
	snap := h.e.Snapshot()
	assert.Equal(t, "alice", snap.Stint.Driver)
	assert.Equal(t, 90*time.Second, snap.Stint.Elapsed)
}
