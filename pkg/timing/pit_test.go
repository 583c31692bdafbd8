package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPitToggle(t *testing.T) {
	h := newHarness(t, sfOnlyTrack())

	assert.True(t, h.e.TogglePit())
	assert.True(t, h.e.PitEngaged())

	h.clk.t = testBase.Add(20 * time.Second)
	h.e.PitTick()
	assert.Equal(t, 20*time.Second, h.e.Snapshot().Pit.Elapsed)

	// manual disengage before the minimum is reached
	assert.False(t, h.e.TogglePit())
	assert.False(t, h.e.PitEngaged())
	assert.Equal(t, time.Duration(0), h.e.Snapshot().Pit.Elapsed)
}

func TestPitAutoDisengage(t *testing.T) {
	h := newHarness(t, sfOnlyTrack()) // MinPitDuration 45s

	h.e.TogglePit()
	h.clk.t = testBase.Add(44 * time.Second)
	h.e.PitTick()
	assert.True(t, h.e.PitEngaged())

	h.clk.t = testBase.Add(45 * time.Second)
	h.e.PitTick()
	assert.False(t, h.e.PitEngaged(), "pit clock must stop at the configured minimum")
}

func TestPitClearedByStop(t *testing.T) {
	h := newHarness(t, sfOnlyTrack())
	h.e.TogglePit()
	h.clk.t = testBase.Add(10 * time.Second)
	h.e.Stop()
	assert.False(t, h.e.PitEngaged())
}
