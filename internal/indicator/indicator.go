// Package indicator implements the price statistics used by the strategies.
package indicator

import "math"

// sdFloor is the smallest standard deviation treated as non-zero.
const sdFloor = 1e-12

// EMA is a running exponential moving average seeded by its first observation.
type EMA struct {
	alpha  float64
	value  float64
	seeded bool
}

// NewEMA returns an EMA with smoothing factor 2/(period+1).
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{alpha: 2.0 / float64(period+1)}
}

// Update folds x into the average and returns the new value.
func (e *EMA) Update(x float64) float64 {
	if !e.seeded {
		e.value, e.seeded = x, true
		return x
	}
	e.value = e.alpha*x + (1-e.alpha)*e.value
	return e.value
}

// EMASeries computes an EMA over values, seeded with the simple average of the first period values.
// Entries before the seed are NaN.
func EMASeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period < 1 || len(values) < period {
		return out
	}

	var sum float64
	for _, v := range values[:period] {
		sum += v
	}
	prev := sum / float64(period)
	out[period-1] = prev

	alpha := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// RSISeries computes the relative strength index with Wilder smoothing.
// Entries before index period are NaN. A window with no movement reads 50.
func RSISeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period < 1 || len(values) <= period {
		return out
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		g, l := split(values[i] - values[i-1])
		gain += g
		loss += l
	}
	gain /= float64(period)
	loss /= float64(period)
	out[period] = rsi(gain, loss)

	n := float64(period)
	for i := period + 1; i < len(values); i++ {
		g, l := split(values[i] - values[i-1])
		gain = (gain*(n-1) + g) / n
		loss = (loss*(n-1) + l) / n
		out[i] = rsi(gain, loss)
	}
	return out
}

func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

func rsi(gain, loss float64) float64 {
	switch {
	case gain == 0 && loss == 0:
		return 50
	case loss == 0:
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}

// ZScore returns how many sample standard deviations the last value lies from the window mean.
// Fewer than two values score 0.
func ZScore(window []float64) float64 {
	n := len(window)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, v := range window {
		mean += v
	}
	mean /= float64(n)

	var ss float64
	for _, v := range window {
		d := v - mean
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(n-1))
	if sd < sdFloor {
		sd = 1.0
	}
	return (window[n-1] - mean) / sd
}

// Valid reports whether x is a usable price.
func Valid(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}
