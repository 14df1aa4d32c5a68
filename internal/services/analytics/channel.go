package analytics

import (
	"math"

	"TrendScan/internal/domain/models"
	domsvc "TrendScan/internal/domain/service"
)

// maxFitDegree caps the polynomial order regardless of series length.
const maxFitDegree = 10

// ChannelCalculator fits a least-squares polynomial center line and
// symmetric standard-deviation bands to a close-price series.
// Pure computation, safe for concurrent use.
type ChannelCalculator struct{}

func NewChannelCalculator() *ChannelCalculator { return &ChannelCalculator{} }

// ClampDegree bounds the polynomial order relative to the series length.
// The bound is min(10, n/20), never below 1. Idempotent: clamping an
// already-clamped degree returns it unchanged.
func ClampDegree(degree, n int) int {
	bound := n / 20
	if bound > maxFitDegree {
		bound = maxFitDegree
	}
	if bound < 1 {
		bound = 1
	}
	if degree > bound {
		return bound
	}
	return degree
}

// Fit computes the channel for the given series.
// Requires len(prices) > degree+2, otherwise models.ErrInsufficientData.
// A rank-deficient or numerically degenerate fit fails with
// models.ErrUnstableFit rather than returning a broken channel.
func (c *ChannelCalculator) Fit(prices models.PriceSeries, degree int, kstd float64) (*models.Channel, error) {
	y := prices.Closes()
	n := len(y)
	if n <= degree+2 {
		return nil, models.ErrInsufficientData
	}

	degree = ClampDegree(degree, n)

	// Fit on x normalized to [-1, 1]; same polynomial space as raw indices
	// but keeps the normal equations well conditioned at higher degrees.
	xs := make([]float64, n)
	for i := range xs {
		if n == 1 {
			xs[i] = 0
			continue
		}
		xs[i] = 2*float64(i)/float64(n-1) - 1
	}

	coeffs, ok := polyfit(xs, y, degree)
	if !ok {
		return nil, models.ErrUnstableFit
	}

	center := make([]float64, n)
	for i, x := range xs {
		center[i] = polyval(coeffs, x)
	}

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(n)

	limit := 10 * math.Abs(mean)
	for _, v := range center {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > limit {
			return nil, models.ErrUnstableFit
		}
	}

	// Population stddev of residuals.
	var ss float64
	for i := range y {
		d := y[i] - center[i]
		ss += d * d
	}
	std := math.Sqrt(ss / float64(n))
	if math.IsNaN(std) || math.IsInf(std, 0) {
		return nil, models.ErrUnstableFit
	}

	upper := make([]float64, n)
	lower := make([]float64, n)
	for i := range center {
		upper[i] = center[i] + kstd*std
		lower[i] = center[i] - kstd*std
	}

	ch := &models.Channel{
		Center: center,
		Upper:  upper,
		Lower:  lower,
		Degree: degree,
		KStd:   kstd,
	}
	if !ch.Ordered() {
		return nil, models.ErrUnstableFit
	}
	return ch, nil
}

// polyfit solves the least-squares normal equations for a polynomial of the
// given degree. Returns ok=false when the system is rank deficient.
func polyfit(xs, ys []float64, degree int) ([]float64, bool) {
	m := degree + 1

	// Normal equations: A^T A c = A^T y, with A the Vandermonde matrix.
	// ata[i][j] = sum x^(i+j), aty[i] = sum x^i * y.
	pow := make([]float64, 2*degree+1)
	aty := make([]float64, m)
	for k, x := range xs {
		xp := 1.0
		for i := 0; i <= 2*degree; i++ {
			pow[i] += xp
			if i < m {
				aty[i] += xp * ys[k]
			}
			xp *= x
		}
	}

	a := make([][]float64, m)
	for i := range a {
		a[i] = make([]float64, m+1)
		for j := 0; j < m; j++ {
			a[i][j] = pow[i+j]
		}
		a[i][m] = aty[i]
	}

	// Gaussian elimination with partial pivoting.
	const pivotEps = 1e-12
	for col := 0; col < m; col++ {
		pivot := col
		for r := col + 1; r < m; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < pivotEps {
			return nil, false
		}
		a[col], a[pivot] = a[pivot], a[col]

		for r := 0; r < m; r++ {
			if r == col {
				continue
			}
			f := a[r][col] / a[col][col]
			for j := col; j <= m; j++ {
				a[r][j] -= f * a[col][j]
			}
		}
	}

	coeffs := make([]float64, m)
	for i := 0; i < m; i++ {
		coeffs[i] = a[i][m] / a[i][i]
		if math.IsNaN(coeffs[i]) || math.IsInf(coeffs[i], 0) {
			return nil, false
		}
	}
	return coeffs, true
}

// polyval evaluates coefficients (ascending order) at x via Horner's rule.
func polyval(coeffs []float64, x float64) float64 {
	v := 0.0
	for i := len(coeffs) - 1; i >= 0; i-- {
		v = v*x + coeffs[i]
	}
	return v
}

var _ domsvc.ChannelFitter = (*ChannelCalculator)(nil)
