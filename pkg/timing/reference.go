package timing

import (
	"math"
	"sort"
	"time"
)

// lapSample is one point of the distance indexed time series recorded while
// a lap is active.
type lapSample struct {
	dist    float64 // cumulative meters since lap start
	elapsed time.Duration
}

// referenceLap is the distance-to-time curve of the best lap so far. It
// answers "what was the reference time at this distance" via binary search
// and linear interpolation.
type referenceLap struct {
	samples []lapSample
	maxDist float64
}

// newReferenceLap filters and sorts the recorded samples. It returns nil
// when the lap does not qualify as a reference (too few samples or too
// short), in which case the caller keeps the previous reference.
func newReferenceLap(samples []lapSample, minSamples int, minDist float64) *referenceLap {
	filtered := make([]lapSample, 0, len(samples))
	for _, s := range samples {
		if math.IsNaN(s.dist) || math.IsInf(s.dist, 0) {
			continue
		}
		if s.dist < 0 || s.elapsed < 0 {
			continue
		}
		filtered = append(filtered, s)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].dist < filtered[j].dist
	})
	if len(filtered) < minSamples {
		return nil
	}
	maxDist := filtered[len(filtered)-1].dist
	if maxDist < minDist {
		return nil
	}
	return &referenceLap{samples: filtered, maxDist: maxDist}
}

// timeAt interpolates the reference time at the given distance. Queries are
// clamped to the recorded range.
func (r *referenceLap) timeAt(dist float64) time.Duration {
	if dist <= r.samples[0].dist {
		return r.samples[0].elapsed
	}
	if dist >= r.maxDist {
		return r.samples[len(r.samples)-1].elapsed
	}
	// first sample with dist >= query; its predecessor brackets the query
	idx := sort.Search(len(r.samples), func(i int) bool {
		return r.samples[i].dist >= dist
	})
	lo, hi := r.samples[idx-1], r.samples[idx]
	if hi.dist == lo.dist {
		return hi.elapsed
	}
	frac := (dist - lo.dist) / (hi.dist - lo.dist)
	return lo.elapsed + time.Duration(frac*float64(hi.elapsed-lo.elapsed))
}
