package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrInsufficientData is returned when fewer than two usable observations are given.
	ErrInsufficientData = errors.New("need at least 2 observations")
	// ErrNotFitted is returned by Predict before Fit succeeded.
	ErrNotFitted = errors.New("model is not fitted")
)

const (
	trendPriorScale = 5.0
	initialNoise    = 0.05
	minNoise        = 1e-4
	jitter          = 1e-9
)

// Model is an additive time-series model: piecewise-linear trend with changepoints,
// Fourier seasonalities and event offsets, fitted as a MAP estimate under Gaussian priors.
type Model struct {
	opt        *Options
	eventNames []string
	eventCol   map[string]int

	fitted       bool
	history      []time.Time
	start        time.Time
	tScale       float64 // seconds spanned by the history
	yScale       float64
	changepoints []float64 // in scaled time
	beta         []float64
	sigma        float64 // residual noise in scaled units
	deltaScale   float64 // mean absolute changepoint slope change
}

// New creates a model. A nil opt uses NewDefaultOptions.
func New(opt *Options) (*Model, error) {
	if opt == nil {
		opt = NewDefaultOptions()
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	m := &Model{opt: opt, eventCol: make(map[string]int)}
	for _, e := range opt.EventOptions.Events {
		if _, ok := m.eventCol[e.Name]; !ok {
			m.eventCol[e.Name] = len(m.eventNames)
			m.eventNames = append(m.eventNames, e.Name)
		}
	}
	return m, nil
}

// Seasonalities returns the seasonality names in column order.
func (m *Model) Seasonalities() []string {
	cfgs := m.opt.SeasonalityOptions.SeasonalityConfigs
	names := make([]string, len(cfgs))
	for i, s := range cfgs {
		names[i] = s.Name
	}
	return names
}

// Events returns the distinct event names in column order.
func (m *Model) Events() []string { return m.eventNames }

// Changepoints returns the fitted changepoint times.
func (m *Model) Changepoints() []time.Time {
	out := make([]time.Time, len(m.changepoints))
	for i, s := range m.changepoints {
		out[i] = m.start.Add(time.Duration(s * m.tScale * float64(time.Second)))
	}
	return out
}

// Fit estimates the model on observations y at strictly increasing times t.
func (m *Model) Fit(t []time.Time, y []float64) error {
	if len(t) != len(y) {
		return fmt.Errorf("times and values differ in length: %d != %d", len(t), len(y))
	}
	if len(t) < 2 {
		return ErrInsufficientData
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value at row %d", i)
		}
		if i > 0 && !t[i].After(t[i-1]) {
			return fmt.Errorf("times must be strictly increasing at row %d", i)
		}
	}

	n := len(t)
	m.history = append([]time.Time(nil), t...)
	m.start = t[0]
	m.tScale = t[n-1].Sub(m.start).Seconds()

	m.yScale = 0
	for _, v := range y {
		m.yScale = math.Max(m.yScale, math.Abs(v))
	}
	if m.yScale == 0 {
		m.yScale = 1
	}

	scaled := make([]float64, n)
	for i, d := range t {
		scaled[i] = m.scaledTime(d)
	}
	m.changepoints = nil
	if cp := m.opt.ChangepointOptions; cp.Auto {
		m.changepoints = placeChangepoints(scaled, cp.AutoNumChangepoints, cp.AutoRange)
	}

	x := m.design(t)
	ys := mat.NewVecDense(n, nil)
	for i, v := range y {
		ys.SetVec(i, v/m.yScale)
	}

	// Two passes: the prior strength depends on the noise level, which is unknown up front.
	sigma := initialNoise
	var beta *mat.VecDense
	for pass := 0; pass < 2; pass++ {
		b, err := solveMAP(x, ys, m.priorPrecision(sigma))
		if err != nil {
			return fmt.Errorf("fit: %w", err)
		}
		beta = b
		sigma = math.Max(residualStd(x, ys, beta), minNoise)
	}

	m.beta = make([]float64, beta.Len())
	for i := range m.beta {
		m.beta[i] = beta.AtVec(i)
	}
	m.sigma = sigma

	m.deltaScale = 0
	for j := range m.changepoints {
		m.deltaScale += math.Abs(m.beta[2+j])
	}
	if len(m.changepoints) > 0 {
		m.deltaScale /= float64(len(m.changepoints))
	}
	m.fitted = true
	return nil
}

// MakeFuturePeriods returns periods time points spaced by freq after the last fitted one.
func (m *Model) MakeFuturePeriods(periods int, freq time.Duration) ([]time.Time, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if periods < 0 || freq <= 0 {
		return nil, fmt.Errorf("invalid future periods %d at %s", periods, freq)
	}
	last := m.history[len(m.history)-1]
	out := make([]time.Time, periods)
	for i := range out {
		out[i] = last.Add(time.Duration(i+1) * freq)
	}
	return out, nil
}

// Predict returns the forecast, its components and the uncertainty interval at each time.
func (m *Model) Predict(t []time.Time) (*Results, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	res := newResults(len(t))
	if len(t) == 0 {
		return res, nil
	}

	x := m.design(t)
	trendCols := 2 + len(m.changepoints)
	seasonCols := trendCols + m.numSeasonalFeatures()

	z := distuv.UnitNormal.Quantile(0.5 + m.opt.IntervalWidth/2)
	rate := float64(len(m.changepoints))

	for i, d := range t {
		var trend, season, event float64
		for j, b := range m.beta {
			v := x.At(i, j) * b
			switch {
			case j < trendCols:
				trend += v
			case j < seasonCols:
				season += v
			default:
				event += v
			}
		}

		variance := m.sigma * m.sigma
		if s := m.scaledTime(d); s > 1 {
			// Expected drift from future changepoints of the historical rate and magnitude.
			h := s - 1
			variance += rate * 2 * m.deltaScale * m.deltaScale * h * h * h / 3
		}
		width := z * math.Sqrt(variance)

		yhat := trend + season + event
		res.T[i] = d
		res.Forecast[i] = yhat * m.yScale
		res.Lower[i] = (yhat - width) * m.yScale
		res.Upper[i] = (yhat + width) * m.yScale
		res.SeriesComponents.Trend[i] = trend * m.yScale
		res.SeriesComponents.Seasonality[i] = season * m.yScale
		res.SeriesComponents.Event[i] = event * m.yScale
	}
	return res, nil
}

func (m *Model) scaledTime(d time.Time) float64 {
	if m.tScale == 0 {
		return 0
	}
	return d.Sub(m.start).Seconds() / m.tScale
}

func (m *Model) numSeasonalFeatures() int {
	p := 0
	for _, s := range m.opt.SeasonalityOptions.SeasonalityConfigs {
		p += 2 * s.Orders
	}
	return p
}

// numFeatures returns the column count of the design matrix.
func (m *Model) numFeatures() int {
	return 2 + len(m.changepoints) + m.numSeasonalFeatures() + len(m.eventNames)
}

// design builds the regressor matrix: intercept, slope, changepoint hinges,
// Fourier pairs per seasonality, then one indicator per event name.
func (m *Model) design(t []time.Time) *mat.Dense {
	x := mat.NewDense(len(t), m.numFeatures(), nil)
	events := m.opt.EventOptions.Events

	for i, d := range t {
		s := m.scaledTime(d)
		x.Set(i, 0, 1)
		x.Set(i, 1, s)
		col := 2
		for _, c := range m.changepoints {
			if s > c {
				x.Set(i, col, s-c)
			}
			col++
		}

		secs := float64(d.Unix())
		for _, sc := range m.opt.SeasonalityOptions.SeasonalityConfigs {
			period := sc.Period.Seconds()
			for k := 1; k <= sc.Orders; k++ {
				arg := 2 * math.Pi * float64(k) * secs / period
				x.Set(i, col, math.Sin(arg))
				x.Set(i, col+1, math.Cos(arg))
				col += 2
			}
		}

		for _, e := range events {
			if e.Contains(d) {
				x.Set(i, col+m.eventCol[e.Name], 1)
			}
		}
	}
	return x
}

// priorPrecision returns the ridge penalty per column for noise level sigma.
func (m *Model) priorPrecision(sigma float64) []float64 {
	lambda := make([]float64, 0, m.numFeatures())
	add := func(count int, scale float64) {
		for i := 0; i < count; i++ {
			lambda = append(lambda, sigma*sigma/(scale*scale))
		}
	}
	add(2, trendPriorScale)
	add(len(m.changepoints), m.opt.ChangepointOptions.PriorScale)
	add(m.numSeasonalFeatures(), m.opt.SeasonalityOptions.PriorScale)
	add(len(m.eventNames), m.opt.EventOptions.PriorScale)
	return lambda
}

// placeChangepoints spreads up to n changepoints uniformly over the first rng share of t.
func placeChangepoints(t []float64, n int, rng float64) []float64 {
	histSize := int(math.Floor(float64(len(t)) * rng))
	if n+1 > histSize {
		n = histSize - 1
	}
	if n <= 0 {
		return nil
	}
	cps := make([]float64, 0, n)
	step := float64(histSize-1) / float64(n)
	for j := 1; j <= n; j++ {
		cps = append(cps, t[int(math.Round(float64(j)*step))])
	}
	return cps
}

func solveMAP(x *mat.Dense, y *mat.VecDense, lambda []float64) (*mat.VecDense, error) {
	var xtx mat.SymDense
	xtx.SymOuterK(1, x.T())
	for j, l := range lambda {
		xtx.SetSym(j, j, xtx.At(j, j)+l+jitter)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, errors.New("normal equations are not positive definite")
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, err
		}
	}
	return &beta, nil
}

func residualStd(x *mat.Dense, y, beta *mat.VecDense) float64 {
	var fitted mat.VecDense
	fitted.MulVec(x, beta)
	var sum float64
	for i := 0; i < y.Len(); i++ {
		r := y.AtVec(i) - fitted.AtVec(i)
		sum += r * r
	}
	return math.Sqrt(sum / float64(y.Len()))
}
