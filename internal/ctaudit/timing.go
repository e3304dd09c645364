package ctaudit

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"
	"time"
)

const (
	// calibrationTarget is the shortest batch duration measured; shorter
	// operations are repeated until one sample spans at least this long.
	calibrationTarget = 2 * time.Microsecond
	maxBatch          = 1024
)

// calibrate returns the number of calls to fn that make up one sample.
func calibrate(fn func() error) (int, error) {
	batch := 1
	for {
		start := time.Now()
		for i := 0; i < batch; i++ {
			if err := fn(); err != nil {
				return 0, err
			}
		}
		if time.Since(start) >= calibrationTarget || batch >= maxBatch {
			return batch, nil
		}
		batch *= 2
	}
}

// measure returns the mean duration of one call to fn in nanoseconds.
func measure(fn func() error, batch int) (float64, error) {
	start := time.Now()
	for i := 0; i < batch; i++ {
		if err := fn(); err != nil {
			return 0, err
		}
	}
	return float64(time.Since(start).Nanoseconds()) / float64(batch), nil
}

// pairTiming is the outcome of timing one pair of secret variants.
type pairTiming struct {
	ratio  float64
	trials int
}

// timePair alternates samples of fa and fb in random order on a locked OS
// thread. Every minCheckpoint trials the ratio is evaluated and the loop
// stops early once it exceeds the threshold.
func (a *Auditor) timePair(ctx context.Context, fa, fb func() error, r *rand.Rand) (pairTiming, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for i := 0; i < a.cfg.Warmup; i++ {
		if err := fa(); err != nil {
			return pairTiming{}, err
		}
		if err := fb(); err != nil {
			return pairTiming{}, err
		}
	}

	batch, err := calibrate(fa)
	if err != nil {
		return pairTiming{}, err
	}

	floor := float64(a.cfg.NoiseFloor.Nanoseconds())
	xs := make([]float64, 0, a.cfg.Trials)
	ys := make([]float64, 0, a.cfg.Trials)
	for i := 0; i < a.cfg.Trials; i++ {
		if err := ctx.Err(); err != nil {
			return pairTiming{}, err
		}

		var x, y float64
		if r.IntN(2) == 0 {
			if x, err = measure(fa, batch); err == nil {
				y, err = measure(fb, batch)
			}
		} else {
			if y, err = measure(fb, batch); err == nil {
				x, err = measure(fa, batch)
			}
		}
		if err != nil {
			return pairTiming{}, err
		}
		xs = append(xs, x)
		ys = append(ys, y)

		if n := len(xs); n >= minCheckpoint && n%minCheckpoint == 0 && n < a.cfg.Trials {
			if ratio := varianceRatio(xs, ys, a.cfg.Trim, floor); ratio > a.cfg.Threshold {
				return pairTiming{ratio: ratio, trials: n}, nil
			}
		}
	}
	return pairTiming{ratio: varianceRatio(xs, ys, a.cfg.Trim, floor), trials: len(xs)}, nil
}

// varianceRatio compares the variance of the pooled samples with the mean
// variance inside each class. Equal class means give a ratio near 1; a
// difference of means d over a within-class deviation s adds d²/4s².
func varianceRatio(xs, ys []float64, trim, floor float64) float64 {
	xs = trimSlowest(xs, trim)
	ys = trimSlowest(ys, trim)
	if len(xs) < 2 || len(ys) < 2 {
		return 0
	}

	_, vx := meanVariance(xs)
	_, vy := meanVariance(ys)
	within := math.Max((vx+vy)/2, floor*floor)
	if within == 0 {
		return 0
	}

	pooled := make([]float64, 0, len(xs)+len(ys))
	pooled = append(pooled, xs...)
	pooled = append(pooled, ys...)
	_, total := meanVariance(pooled)
	return total / within
}

// trimSlowest returns a sorted copy of xs without its slowest fraction.
func trimSlowest(xs []float64, fraction float64) []float64 {
	out := append([]float64(nil), xs...)
	sort.Float64s(out)
	drop := int(math.Ceil(fraction * float64(len(out))))
	if drop >= len(out) {
		return out[:0]
	}
	return out[:len(out)-drop]
}

func meanVariance(xs []float64) (mean, variance float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	return mean, variance / float64(len(xs))
}
