package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Pearson returns the Pearson correlation coefficient of x and y.
// Fewer than two points, or a constant sequence, yield 0 instead of NaN.
// Sequences of different length are truncated to the shorter one.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if n < 2 {
		return 0
	}
	x, y = x[:n], y[:n]

	meanX := stat.Mean(x, nil)
	meanY := stat.Mean(y, nil)

	var numerator, sumSqX, sumSqY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		numerator += dx * dy
		sumSqX += dx * dx
		sumSqY += dy * dy
	}

	denominatorX := math.Sqrt(sumSqX)
	denominatorY := math.Sqrt(sumSqY)
	if denominatorX == 0 || denominatorY == 0 {
		return 0
	}
	return numerator / (denominatorX * denominatorY)
}
