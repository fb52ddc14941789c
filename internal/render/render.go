package render

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"LongTerm/internal/calculator"
	"LongTerm/internal/config"
	"LongTerm/internal/model"
)

var (
	historyColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	predictColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	maxColor     = color.RGBA{G: 128, A: 255}
	minColor     = color.RGBA{R: 255, A: 255}
)

const (
	dpi           = 100
	gutterShare   = 0.2 // right-hand share of the figure reserved for annotations
	annotationPts = 9
)

// Window is the time range shown on a chart.
type Window struct {
	Now           time.Time
	HistoryStart  time.Time
	ForecastStart time.Time
	ForecastEnd   time.Time
}

// Annotation is one labelled extremum.
type Annotation struct {
	Label string
	Value float64
	Date  time.Time // displayed date, see AnnotationDate
}

// Text formats the annotation as shown on the chart.
func (a Annotation) Text() string {
	return fmt.Sprintf("%s: %.2f (%s)", a.Label, a.Value, a.Date.Format(time.DateOnly))
}

// AnnotationDate re-expresses a peak in window-relative days counted from now:
// now + whole days between the window start and the peak.
// It equals the peak's own date only while the window starts exactly LookbackDays before now.
func AnnotationDate(now, windowStart, peak time.Time) time.Time {
	days := int(math.Floor(peak.Sub(windowStart).Hours() / 24))
	return now.AddDate(0, 0, days)
}

// Renderer draws history against forecast and writes one PNG per symbol.
type Renderer struct {
	Dir string
	Now func() time.Time

	cfg config.Render
	log *zap.Logger
}

// NewRenderer creates a Renderer writing into dir.
func NewRenderer(dir string, cfg config.Render, log *zap.Logger) *Renderer {
	return &Renderer{Dir: dir, Now: time.Now, cfg: cfg, log: log}
}

// Path returns the output file for symbol.
func (r *Renderer) Path(symbol string) string {
	return filepath.Join(r.Dir, symbol+"_prediction.png")
}

// Window returns the ranges shown for the given instant. Series are stamped with
// trading dates at midnight UTC, so now is compared by its wall clock.
func (r *Renderer) Window(now time.Time) Window {
	now = wallClock(now)
	return Window{
		Now:           now,
		HistoryStart:  now.AddDate(0, 0, -r.cfg.HistoryDays),
		ForecastStart: now.AddDate(0, 0, -r.cfg.LookbackDays),
		ForecastEnd:   now.AddDate(0, 0, 365),
	}
}

// Annotations returns the max and min annotations for the forecast points inside w.
func Annotations(w Window, points []model.ForecastPoint) (calculator.Peaks, []Annotation, error) {
	peaks, err := calculator.FindPeaks(points)
	if err != nil {
		return calculator.Peaks{}, nil, err
	}
	return peaks, []Annotation{
		{Label: "Max Peak", Value: peaks.Max.Yhat, Date: AnnotationDate(w.Now, w.ForecastStart, peaks.Max.Time)},
		{Label: "Min Peak", Value: peaks.Min.Yhat, Date: AnnotationDate(w.Now, w.ForecastStart, peaks.Min.Time)},
	}, nil
}

// Render writes the chart for symbol and returns its path. An existing file is overwritten.
func (r *Renderer) Render(series *model.PriceSeries, forecast *model.ForecastSeries, symbol string) (string, error) {
	w := r.Window(r.Now())
	history := series.Between(w.HistoryStart, w.Now)
	predicted := forecast.Between(w.ForecastStart, w.ForecastEnd)

	peaks, notes, err := Annotations(w, predicted)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", symbol, err)
	}

	p, err := r.buildPlot(symbol, history, predicted, peaks)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", symbol, err)
	}

	width := vg.Length(r.cfg.WidthInches) * vg.Inch
	height := vg.Length(r.cfg.HeightInches) * vg.Inch
	img := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(dpi))
	dc := draw.New(img)

	gutter := width * gutterShare
	p.Draw(draw.Crop(dc, 0, -gutter, 0, 0))
	drawAnnotations(dc, width-gutter, height, notes)

	if err := os.MkdirAll(r.Dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := r.Path(symbol)
	if err := writePNG(img, path); err != nil {
		return "", fmt.Errorf("render %s: %w", symbol, err)
	}

	r.log.Info("plot saved",
		zap.String("symbol", symbol),
		zap.String("path", path),
		zap.String("max", notes[0].Text()),
		zap.String("min", notes[1].Text()))
	return path, nil
}

func (r *Renderer) buildPlot(symbol string, history []model.OHLCV, predicted []model.ForecastPoint, peaks calculator.Peaks) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Stock Symbol: " + symbol
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Close Price"
	p.X.Tick.Marker = plot.TimeTicks{Format: time.DateOnly}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	// An empty line would pin the axes to infinity.
	if len(history) > 0 {
		xys := make(plotter.XYs, len(history))
		for i, b := range history {
			xys[i] = plotter.XY{X: unix(b.Time), Y: b.Close}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("history line: %w", err)
		}
		line.Color = historyColor
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add("Historical Data", line)
	}

	xys := make(plotter.XYs, len(predicted))
	for i, pt := range predicted {
		xys[i] = plotter.XY{X: unix(pt.Time), Y: pt.Yhat}
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, fmt.Errorf("forecast line: %w", err)
	}
	line.Color = predictColor
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("Predicted Data", line)

	for _, m := range []struct {
		label string
		point model.ForecastPoint
		glyph triangleGlyph
		color color.Color
	}{
		{"Max Peak", peaks.Max, triangleGlyph{}, maxColor},
		{"Min Peak", peaks.Min, triangleGlyph{down: true}, minColor},
	} {
		s, err := plotter.NewScatter(plotter.XYs{{X: unix(m.point.Time), Y: m.point.Yhat}})
		if err != nil {
			return nil, fmt.Errorf("%s marker: %w", m.label, err)
		}
		s.GlyphStyle = draw.GlyphStyle{Color: m.color, Radius: vg.Points(5), Shape: m.glyph}
		p.Add(s)
		p.Legend.Add(m.label, s)
	}
	return p, nil
}

func drawAnnotations(dc draw.Canvas, left, height vg.Length, notes []Annotation) {
	fnt := plot.DefaultFont
	fnt.Size = vg.Points(annotationPts)
	colors := []color.Color{maxColor, minColor}
	for i, n := range notes {
		sty := draw.TextStyle{
			Color:   colors[i%len(colors)],
			Font:    fnt,
			Handler: plot.DefaultTextHandler,
			XAlign:  draw.XLeft,
			YAlign:  draw.YTop,
		}
		y := height * vg.Length(0.95-0.05*float64(i))
		dc.FillText(sty, vg.Point{X: dc.Min.X + left + vg.Points(6), Y: dc.Min.Y + y}, n.Text())
	}
}

func writePNG(img *vgimg.Canvas, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func unix(t time.Time) float64 { return float64(t.Unix()) }

// wallClock re-expresses t's local date and time in UTC.
func wallClock(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// triangleGlyph is a filled triangle pointing up, or down when down is set.
type triangleGlyph struct {
	down bool
}

func (g triangleGlyph) DrawGlyph(c *draw.Canvas, sty draw.GlyphStyle, pt vg.Point) {
	r := sty.Radius
	dir := vg.Length(1)
	if g.down {
		dir = -1
	}
	dx := r * vg.Length(math.Cos(math.Pi/6))
	dy := r * vg.Length(math.Sin(math.Pi/6))

	var p vg.Path
	p.Move(vg.Point{X: pt.X, Y: pt.Y + dir*r})
	p.Line(vg.Point{X: pt.X - dx, Y: pt.Y - dir*dy})
	p.Line(vg.Point{X: pt.X + dx, Y: pt.Y - dir*dy})
	p.Close()

	c.SetColor(sty.Color)
	c.Fill(p)
}
