package backtest

import (
	"context"
	"math"
)

// Classifier maps a feature vector to the probability that self wins.
type Classifier interface {
	Fit(ctx context.Context, x [][]float64, y []float64) error
	Predict(x []float64) float64
}

// Factory returns a fresh, unfitted Classifier.
type Factory func() Classifier

// Logistic is an L2-regularized logistic regression fitted by batch
// gradient descent on standardized features. Soft labels such as 0.5 for
// a draw are accepted. NaN features are read as the training mean.
type Logistic struct {
	LearningRate float64
	Epochs       int
	L2           float64

	mean []float64
	std  []float64
	w    []float64
	b    float64
}

// NewLogistic returns a Logistic with default settings.
func NewLogistic() *Logistic {
	return &Logistic{LearningRate: 0.5, Epochs: 300, L2: 1e-3}
}

// LogisticFactory is the default Factory.
func LogisticFactory() Classifier { return NewLogistic() }

// Fit implements Classifier.
func (m *Logistic) Fit(ctx context.Context, x [][]float64, y []float64) error {
	n := len(x)
	if n == 0 {
		m.w, m.b = nil, 0
		return nil
	}
	d := len(x[0])
	m.mean = make([]float64, d)
	m.std = make([]float64, d)
	counts := make([]float64, d)
	for _, row := range x {
		for j, v := range row {
			if !math.IsNaN(v) {
				m.mean[j] += v
				counts[j]++
			}
		}
	}
	for j := range m.mean {
		if counts[j] > 0 {
			m.mean[j] /= counts[j]
		}
	}
	for _, row := range x {
		for j, v := range row {
			if !math.IsNaN(v) {
				m.std[j] += (v - m.mean[j]) * (v - m.mean[j])
			}
		}
	}
	for j := range m.std {
		m.std[j] = 1
		if counts[j] > 1 {
			if s := math.Sqrt(m.std[j] / counts[j]); s > 0 {
				m.std[j] = s
			}
		}
	}

	z := make([][]float64, n)
	for i, row := range x {
		z[i] = m.scale(row)
	}

	m.w = make([]float64, d)
	m.b = 0
	grad := make([]float64, d)
	for epoch := 0; epoch < m.Epochs; epoch++ {
		if epoch%50 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for j := range grad {
			grad[j] = m.L2 * m.w[j]
		}
		var gb float64
		for i := range z {
			r := (m.raw(z[i]) - y[i]) / float64(n)
			for j, v := range z[i] {
				grad[j] += r * v
			}
			gb += r
		}
		for j := range m.w {
			m.w[j] -= m.LearningRate * grad[j]
		}
		m.b -= m.LearningRate * gb
	}
	return nil
}

// Predict implements Classifier. An unfitted model returns one half.
func (m *Logistic) Predict(x []float64) float64 {
	if m.w == nil {
		return 0.5
	}
	return m.raw(m.scale(x))
}

func (m *Logistic) scale(x []float64) []float64 {
	out := make([]float64, len(m.mean))
	for j := range out {
		if j < len(x) && !math.IsNaN(x[j]) {
			out[j] = (x[j] - m.mean[j]) / m.std[j]
		}
	}
	return out
}

func (m *Logistic) raw(z []float64) float64 {
	s := m.b
	for j, v := range z {
		s += m.w[j] * v
	}
	return 1 / (1 + math.Exp(-s))
}
