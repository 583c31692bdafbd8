package timing

import (
	"math"
	"testing"
	"time"
)

func sec(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func TestNewReferenceLap(t *testing.T) {
	tests := []struct {
		name    string
		samples []lapSample
		wantNil bool
		wantMax float64
	}{
		{
			name: "valid lap",
			samples: []lapSample{
				{0, sec(0)}, {20, sec(2)}, {40, sec(4)}, {60, sec(6)}, {80, sec(8)},
			},
			wantMax: 80,
		},
		{
			name: "too few samples",
			samples: []lapSample{
				{0, sec(0)}, {30, sec(3)}, {60, sec(6)},
			},
			wantNil: true,
		},
		{
			name: "too short",
			samples: []lapSample{
				{0, sec(0)}, {10, sec(1)}, {20, sec(2)}, {30, sec(3)}, {40, sec(4)},
			},
			wantNil: true,
		},
		{
			name: "bad samples are filtered",
			samples: []lapSample{
				{0, sec(0)}, {math.NaN(), sec(1)}, {-5, sec(1)},
				{20, sec(2)}, {40, sec(4)}, {60, sec(6)},
				{math.Inf(1), sec(7)}, {80, sec(8)},
			},
			wantMax: 80,
		},
		{
			name: "unsorted input is sorted by distance",
			samples: []lapSample{
				{80, sec(8)}, {0, sec(0)}, {60, sec(6)}, {20, sec(2)}, {40, sec(4)},
			},
			wantMax: 80,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newReferenceLap(tt.samples,
				defaultMinRefLapSamples, defaultMinRefLapDistance)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("got reference lap, want nil")
				}
				return
			}
			if got == nil {
				t.Fatal("got nil, want reference lap")
			}
			if got.maxDist != tt.wantMax {
				t.Errorf("maxDist = %.1f, want %.1f", got.maxDist, tt.wantMax)
			}
			for i := 1; i < len(got.samples); i++ {
				if got.samples[i].dist < got.samples[i-1].dist {
					t.Errorf("samples not sorted at %d", i)
				}
			}
		})
	}
}

func TestReferenceLapTimeAt(t *testing.T) {
	ref := newReferenceLap([]lapSample{
		{0, sec(0)}, {100, sec(10)}, {200, sec(18)}, {300, sec(30)}, {400, sec(40)},
	}, defaultMinRefLapSamples, defaultMinRefLapDistance)
	if ref == nil {
		t.Fatal("reference lap not built")
	}

	tests := []struct {
		name string
		dist float64
		want time.Duration
	}{
		{"exact sample", 100, sec(10)},
		{"interpolated", 150, sec(14)},
		{"interpolated uneven segment", 250, sec(24)},
		{"clamped below", -10, sec(0)},
		{"clamped above", 500, sec(40)},
		{"at max", 400, sec(40)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ref.timeAt(tt.dist); got != tt.want {
				t.Errorf("timeAt(%.0f) = %v, want %v", tt.dist, got, tt.want)
			}
		})
	}
}

func TestReferenceLapDeterminism(t *testing.T) {
	ref := newReferenceLap([]lapSample{
		{0, sec(0)}, {50, sec(5)}, {100, sec(11)}, {150, sec(15)}, {200, sec(22)},
	}, defaultMinRefLapSamples, defaultMinRefLapDistance)
	queries := []float64{10, 60, 110, 160, 190}

	run := func() []time.Duration {
		out := make([]time.Duration, 0, len(queries))
		for _, q := range queries {
			out = append(out, ref.timeAt(q))
		}
		return out
	}
	first := run()
	for i := 0; i < 100; i++ {
		again := run()
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("run %d query %d: %v != %v", i, j, again[j], first[j])
			}
		}
	}
}
