package signif

import (
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/lnsongxf/exact-linear-dependence/core"
)

// SampleNull draws Monte-Carlo realizations of the exact null (the weighted
// sum of chi-squared(1) variables) for inspection or custom thresholds. The
// draws are the same ones PValue consumes for a given seed.
func SampleNull(null Null, samples int, seed int64) ([]float64, error) {
	if len(null.Weights) == 0 {
		return nil, core.NewConfigurationError("exact-test weights", "empty")
	}
	if samples <= 0 {
		samples = DefaultSamples
	}
	return sampleNull(null.Weights, samples, seed), nil
}

// sampleNull fans the draw range out over a worker pool. Chunk seeds derive
// from the master seed in a fixed order and every chunk writes to its own
// slice range, so the full draw sequence is reproducible and independent of
// goroutine scheduling.
func sampleNull(weights []float64, samples int, seed int64) []float64 {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	master := rand.New(rand.NewSource(seed))

	numWorkers := runtime.NumCPU()
	if numWorkers > samples {
		numWorkers = samples
	}
	chunk := (samples + numWorkers - 1) / numWorkers

	type span struct {
		start, end int
		seed       int64
	}
	spans := make([]span, 0, numWorkers)
	for start := 0; start < samples; start += chunk {
		end := start + chunk
		if end > samples {
			end = samples
		}
		spans = append(spans, span{start: start, end: end, seed: master.Int63()})
	}

	draws := make([]float64, samples)

	var wg sync.WaitGroup
	wg.Add(len(spans))
	for _, sp := range spans {
		go func(sp span) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(sp.seed))
			for i := sp.start; i < sp.end; i++ {
				sum := 0.0
				for _, w := range weights {
					z := rng.NormFloat64()
					sum += w * z * z
				}
				draws[i] = sum
			}
		}(sp)
	}
	wg.Wait()

	return draws
}

// SampleSummary describes a Monte-Carlo null sample.
type SampleSummary struct {
	Mean   float64
	Median float64
	Q05    float64
	Q95    float64
}

// Summarize computes descriptive statistics of a null sample, useful for
// reporting critical values alongside a p-value.
func Summarize(draws []float64) (SampleSummary, error) {
	if len(draws) == 0 {
		return SampleSummary{}, core.NewConfigurationError("null sample", "empty")
	}
	mean, err := stats.Mean(draws)
	if err != nil {
		return SampleSummary{}, err
	}
	median, err := stats.Median(draws)
	if err != nil {
		return SampleSummary{}, err
	}
	q05, err := stats.Percentile(draws, 5)
	if err != nil {
		return SampleSummary{}, err
	}
	q95, err := stats.Percentile(draws, 95)
	if err != nil {
		return SampleSummary{}, err
	}
	return SampleSummary{Mean: mean, Median: median, Q05: q05, Q95: q95}, nil
}
