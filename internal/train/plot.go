package train

import (
	"image/color"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// logFloor replaces non-positive means on the log axis.
const logFloor = 1e-300

var gradTypeColors = map[string]color.Color{
	"f_true":     color.RGBA{R: 255, A: 255},
	"f_fwd":      color.RGBA{A: 255},
	"f_hat_true": color.RGBA{G: 128, A: 255},
	"cv_fwd":     color.RGBA{B: 255, A: 255},
}

// PlotConvergence draws the mean objective per step of every run on a log
// scale and saves the figure to path. The image format follows the file
// extension. Runs of the same grad type share a color and one legend entry.
func PlotConvergence(path, title string, runs []*Trajectories) error {
	if len(runs) == 0 {
		return errors.New("plot: no runs")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "step"
	p.Y.Label.Text = "mean objective"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	labelled := make(map[string]bool)
	for _, run := range runs {
		means := run.MeanPerStep()
		pts := make(plotter.XYs, len(means))
		for i, m := range means {
			pts[i].X = float64(i)
			pts[i].Y = math.Max(m, logFloor)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "plot: run %s", run.Name())
		}
		c, ok := gradTypeColors[run.GradType]
		if !ok {
			c = color.Gray{Y: 128}
		}
		line.Color = c
		p.Add(line)
		if !labelled[run.GradType] {
			p.Legend.Add(run.GradType, line)
			labelled[run.GradType] = true
		}
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "plot: saving %s", path)
	}
	return nil
}
