package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racelogger/laptimer-go/pkg/model"
	"github.com/racelogger/laptimer-go/pkg/timing"
)

var ctrlBase = time.Date(2025, 6, 14, 13, 0, 0, 0, time.UTC)

func ctrlTrack() model.TrackDefinition {
	return model.TrackDefinition{
		Name: "test ring",
		StartFinish: &model.TrackLine{
			A: model.GeoPoint{Lat: 50.4450, Lon: 5.9700},
			B: model.GeoPoint{Lat: 50.4452, Lon: 5.9700},
		},
	}
}

func ctrlFix(lat, lon float64, at time.Time) model.Fix {
	speed := 100.0
	return model.Fix{Lat: lat, Lon: lon, Time: at, SpeedKmh: &speed}
}

func TestControllerLapFlash(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewController(WithTickInterval(10 * time.Millisecond))
	go c.Run(ctx)

	flashes := c.SubscribeLapFlashes()

	c.Arm(timing.RaceConfig{Track: ctrlTrack(), Drivers: []string{"alice"}})
	c.StartSession()

	// origin crossing, loop around north of the line, cross again 35s later
	c.Ingest(ctrlFix(50.4451, 5.9699, ctrlBase.Add(-time.Second)))
	c.Ingest(ctrlFix(50.4451, 5.9701, ctrlBase))
	c.Ingest(ctrlFix(50.4455, 5.9701, ctrlBase.Add(25*time.Second)))
	c.Ingest(ctrlFix(50.4455, 5.9699, ctrlBase.Add(29*time.Second)))
	c.Ingest(ctrlFix(50.4451, 5.9699, ctrlBase.Add(34*time.Second)))
	c.Ingest(ctrlFix(50.4451, 5.9701, ctrlBase.Add(35*time.Second)))

	select {
	case flash := <-flashes:
		assert.Equal(t, 1, flash.LapNo)
		assert.Equal(t, 35*time.Second, flash.LapTime)
		assert.Equal(t, model.LapBestEver, flash.Class)
	case <-time.After(2 * time.Second):
		t.Fatal("no lap flash received")
	}

	snap, err := c.CurrentSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.LapCount)
	assert.Equal(t, 35*time.Second, snap.BestLapTime)
	assert.Equal(t, model.StateRunning, snap.State)
}

func TestControllerSnapshotTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewController(WithTickInterval(10 * time.Millisecond))
	go c.Run(ctx)

	snaps := c.SubscribeSnapshots()
	select {
	case snap := <-snaps:
		assert.Equal(t, model.StateIdle, snap.State)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot published")
	}
}

func TestControllerCurrentSnapshotHonorsContext(t *testing.T) {
	c := NewController() // Run never started, command loop is idle
	for i := 0; i < cap(c.cmds); i++ {
		c.cmds <- func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.CurrentSnapshot(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
