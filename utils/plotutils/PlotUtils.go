// Package plotutils implements helpers for plotting the diagnostics
// that experiments record, such as per-tick cost curves and the path
// the end effector traced through the workspace.
package plotutils

import (
	"bufio"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// SaveLinePlot saves a line plot of ys against xs as a PNG at
// filepath.Join(outDir, filename).
func SaveLinePlot(outDir, filename, title, xlabel, ylabel string,
	xs, ys []float64) error {
	if len(xs) == 0 || len(xs) != len(ys) {
		return fmt.Errorf("savelineplot: invalid data lengths "+
			"\n\twant(equal, nonzero) \n\thave(%v, %v)", len(xs), len(ys))
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	stylePlot(p)

	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("savelineplot: could not create line: %v", err)
	}
	line.LineStyle.Width = vg.Points(2.0)
	p.Add(line)

	return savePNG(p, 8.0, 6.0, filepath.Join(outDir, filename))
}

// SavePathPlot saves a plot of the (x, y) path the end effector
// followed, marking the target position and the final position, as a
// PNG at filepath.Join(outDir, filename).
func SavePathPlot(outDir, filename string, xs, ys []float64,
	target []float64) error {
	if len(xs) == 0 || len(xs) != len(ys) {
		return fmt.Errorf("savepathplot: invalid path lengths "+
			"\n\twant(equal, nonzero) \n\thave(%v, %v)", len(xs), len(ys))
	}
	if len(target) != 2 {
		return fmt.Errorf("savepathplot: invalid target dimensions "+
			"\n\twant(2) \n\thave(%v)", len(target))
	}

	p := plot.New()
	p.Title.Text = "End Effector Path"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	stylePlot(p)
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("savepathplot: could not create line: %v", err)
	}
	line.LineStyle.Width = vg.Points(2.0)
	p.Add(line)

	goal, err := scatter(plotter.XYs{{X: target[0], Y: target[1]}},
		color.RGBA{R: 200, A: 255}, draw.CircleGlyph{})
	if err != nil {
		return fmt.Errorf("savepathplot: could not mark target: %v", err)
	}
	p.Add(goal)
	p.Legend.Add("target", goal)

	final, err := scatter(plotter.XYs{{X: xs[len(xs)-1], Y: ys[len(ys)-1]}},
		color.RGBA{B: 200, A: 255}, draw.PyramidGlyph{})
	if err != nil {
		return fmt.Errorf("savepathplot: could not mark final position: %v",
			err)
	}
	p.Add(final)
	p.Legend.Add("final", final)

	return savePNG(p, 8.0, 8.0, filepath.Join(outDir, filename))
}

func scatter(pts plotter.XYs, c color.RGBA,
	shape draw.GlyphDrawer) (*plotter.Scatter, error) {
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Shape = shape
	s.GlyphStyle.Radius = vg.Points(5)
	return s, nil
}

func stylePlot(p *plot.Plot) {
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.Title.Padding = vg.Points(8)

	p.X.Label.TextStyle.Font.Size = vg.Points(13)
	p.Y.Label.TextStyle.Font.Size = vg.Points(13)
	p.X.Label.Padding = vg.Points(6)
	p.Y.Label.Padding = vg.Points(6)

	p.X.Tick.Label.Font.Size = vg.Points(11)
	p.Y.Tick.Label.Font.Size = vg.Points(11)
}

func savePNG(p *plot.Plot, widthIn, heightIn float64,
	filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("savepng: could not create directory: %v", err)
	}

	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(150),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("savepng: could not create file: %v", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	defer bw.Flush()

	png := vgimg.PngCanvas{Canvas: c}
	if _, err := png.WriteTo(bw); err != nil {
		return fmt.Errorf("savepng: could not write image: %v", err)
	}
	return nil
}
