package evaluation

import (
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/YuminosukeSato/agriml/pkg/errors"
)

// WriteAccuracyChart renders per-class accuracy as a PNG bar chart.
func WriteAccuracyChart(path string, r *Report) (err error) {
	if len(r.PerClassAccuracy) == 0 {
		return errors.NewValueError("WriteAccuracyChart", "report has no classes")
	}

	p := plot.New()
	p.Title.Text = "Per-class accuracy (held-out split)"
	p.Y.Label.Text = "accuracy"
	p.Y.Min, p.Y.Max = 0, 1

	bars, err := plotter.NewBarChart(plotter.Values(r.PerClassAccuracy), vg.Points(12))
	if err != nil {
		return errors.Wrap(err, "build bar chart")
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(r.ClassNames...)
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter

	width := max(6*vg.Inch, vg.Length(len(r.ClassNames))*vg.Points(18))
	canvas := vgimg.PngCanvas{Canvas: vgimg.New(width, 4*vg.Inch)}
	p.Draw(draw.New(canvas))

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()
	if _, err := canvas.WriteTo(f); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
